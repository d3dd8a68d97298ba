package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"sepaetl/pkg/records"
)

func testWriter(t *testing.T) *Writer {
	t.Helper()
	return &Writer{
		Root:          t.TempDir(),
		FechaVigencia: time.Date(2025, 11, 23, 0, 0, 0, 0, time.UTC),
		ScrapedAt:     time.Date(2025, 11, 23, 14, 30, 0, 0, time.UTC),
		Log:           zerolog.Nop(),
	}
}

func factRow(producto int64, precio float64) records.Record {
	marca := "Marca " + string(rune('A'+producto%26))
	return records.Record{
		"id_comercio":            "7",
		"id_bandera":             int64(1),
		"id_sucursal":            int64(3),
		"id_producto":            producto,
		"productos_precio_lista": precio,
		"productos_descripcion":  "Yerba mate 500g",
		"productos_marca":        marca,
	}
}

func TestPathLayout(t *testing.T) {
	w := testWriter(t)
	want := filepath.Join(w.Root, "year=2025", "month=11", "day=23", "precios.parquet")
	if got := w.Path(); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestAppendCloseRoundTrip(t *testing.T) {
	w := testWriter(t)
	if err := w.Append([]records.Record{factRow(100, 1250.50), factRow(101, 899.99)}); err != nil {
		t.Fatal(err)
	}
	if err := w.Append([]records.Record{factRow(102, 15.0)}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Rows() != 3 {
		t.Errorf("Rows() = %d, want 3", w.Rows())
	}

	rows, err := parquet.ReadFile[PrecioRow](w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("read %d rows, want 3", len(rows))
	}
	first := rows[0]
	if first.IDComercio != "7" || first.IDProducto != 100 {
		t.Errorf("row identity = %s/%d", first.IDComercio, first.IDProducto)
	}
	if first.PrecioLista != 1250.50 {
		t.Errorf("precio_lista = %v", first.PrecioLista)
	}
	if first.PrecioReferencia != nil {
		t.Errorf("absent precio_referencia should read back nil, got %v", *first.PrecioReferencia)
	}
	if first.Marca == nil || *first.Marca != "Marca W" {
		t.Errorf("marca = %v", first.Marca)
	}
	if first.FechaVigencia != "2025-11-23" {
		t.Errorf("fecha_vigencia = %q", first.FechaVigencia)
	}
	if !first.ScrapedAt.Equal(time.Date(2025, 11, 23, 14, 30, 0, 0, time.UTC)) {
		t.Errorf("scraped_at = %v", first.ScrapedAt)
	}
}

func TestCloseWithoutAppendIsNoop(t *testing.T) {
	w := testWriter(t)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Errorf("no file should exist for an empty run, stat err = %v", err)
	}
}

func TestAppendEmptyChunkDoesNotOpen(t *testing.T) {
	w := testWriter(t)
	if err := w.Append(nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Errorf("empty chunks should not create the file, stat err = %v", err)
	}
}
