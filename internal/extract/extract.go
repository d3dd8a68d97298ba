// Package extract validates and unpacks the per-merchant SEPA zip archives
// for one calendar date. Each archive must contain the three member files
// (comercio.csv, sucursales.csv, productos.csv); a missing member invalidates
// the whole archive. Distinct archives are unpacked by a bounded worker pool,
// and one archive's failure never aborts its siblings: failures are collected
// per archive and reported to the caller, which decides what to skip.
package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sepaetl/internal/fecha"
	"sepaetl/internal/schema"
)

// memberFiles are the required zip members, keyed by the table they feed.
var memberFiles = map[schema.Table]string{
	schema.TableComercio:   "comercio.csv",
	schema.TableSucursales: "sucursales.csv",
	schema.TableProductos:  "productos.csv",
}

// ExtractionError reports an archive that could not be unpacked, either
// because required members are missing or because the container itself is
// unreadable or implausibly small.
type ExtractionError struct {
	Archive string
	Missing []string
	Err     error
}

func (e *ExtractionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("extract %s: missing members: %s", e.Archive, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Archive is one successfully unpacked merchant feed: the source zip name and
// the path of each extracted member, keyed by table.
type Archive struct {
	Name    string
	Members map[schema.Table]string
}

// Result aggregates the extraction phase for one run.
type Result struct {
	Archives []Archive
	Failed   []*ExtractionError
}

// Extractor unpacks dated archives under DataDir into DataDir/temp/<date>/.
type Extractor struct {
	DataDir  string
	Workers  int   // bounded pool size; <= 0 means 8
	MinBytes int64 // archives smaller than this fail; <= 0 disables the guard

	Log zerolog.Logger
}

// All locates the sepa_*.zip archives for targetDate and unpacks them
// concurrently. The per-date input directory must exist; an empty one is not
// an error and yields an empty Result. Archive order in the result is stable
// (sorted by file name) regardless of worker scheduling.
func (x *Extractor) All(ctx context.Context, targetDate time.Time) (*Result, error) {
	dateDir := filepath.Join(x.DataDir, fecha.ISO(targetDate))
	if _, err := os.Stat(dateDir); err != nil {
		return nil, fmt.Errorf("no data directory for %s: %w", fecha.ISO(targetDate), err)
	}

	zips, err := filepath.Glob(filepath.Join(dateDir, "sepa_*.zip"))
	if err != nil {
		return nil, fmt.Errorf("glob archives: %w", err)
	}
	sort.Strings(zips)
	x.Log.Info().Int("archives", len(zips)).Str("date", fecha.ISO(targetDate)).Msg("found archives")

	extractRoot := filepath.Join(x.DataDir, "temp", fecha.ISO(targetDate))
	if err := os.MkdirAll(extractRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create extract dir: %w", err)
	}

	workers := x.Workers
	if workers <= 0 {
		workers = 8
	}

	var (
		mu  sync.Mutex
		res Result
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, zipPath := range zips {
		zipPath := zipPath
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ar, xerr := x.one(zipPath, extractRoot)
			mu.Lock()
			defer mu.Unlock()
			if xerr != nil {
				x.Log.Error().Str("archive", filepath.Base(zipPath)).Err(xerr).Msg("archive extraction failed")
				res.Failed = append(res.Failed, xerr)
				return nil
			}
			res.Archives = append(res.Archives, ar)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(res.Archives, func(i, j int) bool { return res.Archives[i].Name < res.Archives[j].Name })
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].Archive < res.Failed[j].Archive })
	return &res, nil
}

// one unpacks a single archive into its own subdirectory and returns the
// member paths.
func (x *Extractor) one(zipPath, extractRoot string) (Archive, *ExtractionError) {
	name := filepath.Base(zipPath)
	x.Log.Info().Str("archive", name).Msg("extracting")

	if x.MinBytes > 0 {
		info, err := os.Stat(zipPath)
		if err != nil {
			return Archive{}, &ExtractionError{Archive: name, Err: err}
		}
		if info.Size() < x.MinBytes {
			return Archive{}, &ExtractionError{
				Archive: name,
				Err:     fmt.Errorf("archive is %d bytes, below the %d byte minimum", info.Size(), x.MinBytes),
			}
		}
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return Archive{}, &ExtractionError{Archive: name, Err: err}
	}
	defer zr.Close()

	present := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		present[f.Name] = f
	}
	var missing []string
	for _, member := range memberFiles {
		if _, ok := present[member]; !ok {
			missing = append(missing, member)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Archive{}, &ExtractionError{Archive: name, Missing: missing}
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	destDir := filepath.Join(extractRoot, stem)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Archive{}, &ExtractionError{Archive: name, Err: err}
	}

	members := make(map[schema.Table]string, len(memberFiles))
	for table, member := range memberFiles {
		dest := filepath.Join(destDir, member)
		if err := writeMember(present[member], dest); err != nil {
			return Archive{}, &ExtractionError{Archive: name, Err: err}
		}
		members[table] = dest
	}
	return Archive{Name: name, Members: members}, nil
}

func writeMember(zf *zip.File, dest string) error {
	src, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", zf.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("write member %s: %w", zf.Name, err)
	}
	return out.Close()
}
