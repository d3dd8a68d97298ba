package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sepaetl/internal/fecha"
	"sepaetl/internal/schema"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func fullMembers() map[string]string {
	return map[string]string{
		"comercio.csv":   "id_comercio|id_bandera\n1|1\n",
		"sucursales.csv": "id_comercio|id_bandera|id_sucursal\n1|1|1\n",
		"productos.csv":  "id_comercio|id_producto\n1|10\n",
	}
}

func testDate(t *testing.T) time.Time {
	t.Helper()
	d, err := fecha.ParseISO("2025-11-23")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newExtractor(dataDir string) *Extractor {
	return &Extractor{DataDir: dataDir, Workers: 4, Log: zerolog.Nop()}
}

func TestAllExtractsValidArchives(t *testing.T) {
	dataDir := t.TempDir()
	date := testDate(t)
	dateDir := filepath.Join(dataDir, fecha.ISO(date))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(dateDir, "sepa_b.zip"), fullMembers())
	writeZip(t, filepath.Join(dateDir, "sepa_a.zip"), fullMembers())

	res, err := newExtractor(dataDir).All(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Archives) != 2 || len(res.Failed) != 0 {
		t.Fatalf("got %d archives, %d failed", len(res.Archives), len(res.Failed))
	}
	// Stable order regardless of worker scheduling.
	if res.Archives[0].Name != "sepa_a.zip" || res.Archives[1].Name != "sepa_b.zip" {
		t.Errorf("archives out of order: %s, %s", res.Archives[0].Name, res.Archives[1].Name)
	}
	for _, table := range []schema.Table{schema.TableComercio, schema.TableSucursales, schema.TableProductos} {
		path, ok := res.Archives[0].Members[table]
		if !ok {
			t.Fatalf("missing member path for %s", table)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("member %s not extracted: %v", table, err)
		}
	}
}

func TestAllIsolatesMissingMemberFailure(t *testing.T) {
	dataDir := t.TempDir()
	date := testDate(t)
	dateDir := filepath.Join(dataDir, fecha.ISO(date))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(dateDir, "sepa_good.zip"), fullMembers())
	bad := fullMembers()
	delete(bad, "sucursales.csv")
	writeZip(t, filepath.Join(dateDir, "sepa_bad.zip"), bad)

	res, err := newExtractor(dataDir).All(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Archives) != 1 || res.Archives[0].Name != "sepa_good.zip" {
		t.Fatalf("good archive should survive: %+v", res.Archives)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("got %d failures, want 1", len(res.Failed))
	}
	fail := res.Failed[0]
	if fail.Archive != "sepa_bad.zip" {
		t.Errorf("failure attributed to %q", fail.Archive)
	}
	if len(fail.Missing) != 1 || fail.Missing[0] != "sucursales.csv" {
		t.Errorf("missing members = %v", fail.Missing)
	}
}

func TestAllRejectsTooSmallArchive(t *testing.T) {
	dataDir := t.TempDir()
	date := testDate(t)
	dateDir := filepath.Join(dataDir, fecha.ISO(date))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(dateDir, "sepa_tiny.zip"), fullMembers())

	x := newExtractor(dataDir)
	x.MinBytes = 1 << 20
	res, err := x.All(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failed) != 1 || len(res.Archives) != 0 {
		t.Fatalf("undersized archive should fail: %d ok, %d failed", len(res.Archives), len(res.Failed))
	}
	if fail := res.Failed[0]; fail.Err == nil || !strings.Contains(fail.Err.Error(), "minimum") {
		t.Errorf("failure should name the size guard: %v", fail)
	}
}

func TestAllMissingDateDir(t *testing.T) {
	if _, err := newExtractor(t.TempDir()).All(context.Background(), testDate(t)); err == nil {
		t.Fatal("expected error for missing date directory")
	}
}

func TestAllCorruptZip(t *testing.T) {
	dataDir := t.TempDir()
	date := testDate(t)
	dateDir := filepath.Join(dataDir, fecha.ISO(date))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Big enough to pass the size guard, but not a zip.
	if err := os.WriteFile(filepath.Join(dateDir, "sepa_corrupt.zip"), make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := newExtractor(dataDir).All(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("corrupt zip should fail in isolation: %+v", res)
	}
}
