// Package archive appends the per-date fact rows to a zstd-compressed
// parquet file under the year=/month=/day= partition layout. The writer is
// owned exclusively by one run: it opens lazily on the first appended chunk,
// accepts any number of appends, and must be closed explicitly to flush.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"sepaetl/internal/fecha"
	"sepaetl/pkg/records"
)

// PrecioRow is the parquet schema for one priced observation. Columns mirror
// the relational fact load.
type PrecioRow struct {
	IDComercio       string   `parquet:"id_comercio"`
	IDBandera        int64    `parquet:"id_bandera"`
	IDSucursal       int64    `parquet:"id_sucursal"`
	IDProducto       int64    `parquet:"id_producto"`
	PrecioLista      float64  `parquet:"productos_precio_lista"`
	PrecioReferencia *float64 `parquet:"productos_precio_referencia,optional"`
	PrecioPromo1     *float64 `parquet:"productos_precio_unitario_promo1,optional"`
	LeyendaPromo1    *string  `parquet:"productos_leyenda_promo1,optional"`
	PrecioPromo2     *float64 `parquet:"productos_precio_unitario_promo2,optional"`
	LeyendaPromo2    *string  `parquet:"productos_leyenda_promo2,optional"`
	Descripcion      string   `parquet:"productos_descripcion"`
	Marca            *string  `parquet:"productos_marca,optional"`

	ScrapedAt     time.Time `parquet:"scraped_at,timestamp(millisecond)"`
	FechaVigencia string    `parquet:"fecha_vigencia"`
}

// Writer appends chunks of fact rows for one business date.
type Writer struct {
	Root          string // archive root directory
	FechaVigencia time.Time
	ScrapedAt     time.Time
	Log           zerolog.Logger

	file *os.File
	pw   *parquet.GenericWriter[PrecioRow]
	rows int64
}

// Path returns the partitioned destination file for the writer's date.
func (w *Writer) Path() string {
	d := w.FechaVigencia
	return filepath.Join(
		w.Root,
		fmt.Sprintf("year=%d", d.Year()),
		fmt.Sprintf("month=%02d", int(d.Month())),
		fmt.Sprintf("day=%02d", d.Day()),
		"precios.parquet",
	)
}

// Append writes one chunk. The underlying file is created on the first call,
// replacing any file left by a prior run for the same date.
func (w *Writer) Append(rows []records.Record) error {
	if len(rows) == 0 {
		return nil
	}
	if w.pw == nil {
		path := w.Path()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("archive: create partition dir: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("archive: create %s: %w", path, err)
		}
		w.file = f
		w.pw = parquet.NewGenericWriter[PrecioRow](f, parquet.Compression(&parquet.Zstd))
		w.Log.Info().Str("path", path).Msg("opened parquet archive")
	}

	out := make([]PrecioRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRow(r, w.ScrapedAt, w.FechaVigencia))
	}
	if _, err := w.pw.Write(out); err != nil {
		return fmt.Errorf("archive: write chunk: %w", err)
	}
	w.rows += int64(len(out))
	return nil
}

// Close flushes buffered data and closes the file. It is a no-op when no
// chunk was ever appended.
func (w *Writer) Close() error {
	if w.pw == nil {
		return nil
	}
	if err := w.pw.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("archive: close writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("archive: close file: %w", err)
	}
	w.Log.Info().Int64("rows", w.rows).Str("path", w.Path()).Msg("parquet archive closed")
	return nil
}

// Rows returns the number of rows appended so far.
func (w *Writer) Rows() int64 { return w.rows }

func toRow(r records.Record, scrapedAt, fechaVigencia time.Time) PrecioRow {
	row := PrecioRow{
		IDComercio:       r.String("id_comercio"),
		PrecioReferencia: optFloat(r["productos_precio_referencia"]),
		PrecioPromo1:     optFloat(r["productos_precio_unitario_promo1"]),
		LeyendaPromo1:    optString(r["productos_leyenda_promo1"]),
		PrecioPromo2:     optFloat(r["productos_precio_unitario_promo2"]),
		LeyendaPromo2:    optString(r["productos_leyenda_promo2"]),
		Descripcion:      r.String("productos_descripcion"),
		Marca:            optString(r["productos_marca"]),
		ScrapedAt:        scrapedAt,
		FechaVigencia:    fecha.ISO(fechaVigencia),
	}
	if v, ok := r["id_bandera"].(int64); ok {
		row.IDBandera = v
	}
	if v, ok := r["id_sucursal"].(int64); ok {
		row.IDSucursal = v
	}
	if v, ok := r["id_producto"].(int64); ok {
		row.IDProducto = v
	}
	if v, ok := r["productos_precio_lista"].(float64); ok {
		row.PrecioLista = v
	}
	return row
}

func optFloat(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func optString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
