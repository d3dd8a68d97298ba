// Package validate cleans and filters the raw member-file rows, one entity
// type at a time. Required columns and target types come from the schema
// registry. Validation is deliberately soft: a value that fails coercion
// becomes nil, and only rows missing fields the destination store requires
// are dropped. Every drop is logged with its count and cause; no error
// escapes per-row logic. The only hard failure is a member file whose column
// set does not cover the required columns.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"sepaetl/internal/schema"
	"sepaetl/pkg/records"
)

// SchemaError reports a member file that lacks required columns. It is fatal
// to that file's chunk.
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s missing columns: %s", e.File, strings.Join(e.Missing, ", "))
}

// trailerMarker matches the free-text footer the feed appends where data rows
// are expected ("Ultima actualización: ..."). Matched without the first
// letter so both the accented and unaccented spellings are caught.
const trailerMarker = "ltima actualizaci"

// Validator validates one run's rows. The logger is injected so callers
// control the reporting context.
type Validator struct {
	Log zerolog.Logger
}

// Comercios validates merchant rows: trailer strip, scrub, identity
// soft-casts, and the minimal non-null policy on (id_comercio, id_bandera).
func (v *Validator) Comercios(header []string, rows []records.Record) ([]records.Record, error) {
	cols, err := checkTable(schema.TableComercio, header)
	if err != nil {
		return nil, err
	}

	rows = v.dropTrailerRows("comercio.csv", rows, "id_comercio")
	scrub(rows)
	coerceKinds(rows, cols)

	before := len(rows)
	rows = keep(rows, func(r records.Record) bool {
		return !r.IsNull("id_comercio") && !r.IsNull("id_bandera")
	})
	if dropped := before - len(rows); dropped > 0 {
		v.Log.Warn().Int("dropped", dropped).
			Msg("comercio rows missing id_comercio/id_bandera after soft-cast")
	}
	return rows, nil
}

// Sucursales validates branch rows. Branch-type vocabulary checking is
// non-destructive: unknown types are logged with samples but kept.
func (v *Validator) Sucursales(header []string, rows []records.Record) ([]records.Record, error) {
	cols, err := checkTable(schema.TableSucursales, header)
	if err != nil {
		return nil, err
	}

	rows = v.dropTrailerRows("sucursales.csv", rows, "id_comercio")
	scrub(rows)
	coerceKinds(rows, cols)

	before := len(rows)
	rows = keep(rows, func(r records.Record) bool {
		return !r.IsNull("id_comercio") && !r.IsNull("id_bandera") && !r.IsNull("id_sucursal") &&
			!r.IsNull("sucursales_localidad") && !r.IsNull("sucursales_provincia")
	})
	if dropped := before - len(rows); dropped > 0 {
		v.Log.Warn().Int("dropped", dropped).
			Msg("sucursal rows missing id keys or location fields after soft-cast")
	}

	v.checkTipoVocabulary(rows)
	return rows, nil
}

// Productos validates priced-product rows. Non-positive list prices are
// counted and logged here but retained; exclusion from the fact load happens
// later so the rows stay available for audit.
func (v *Validator) Productos(header []string, rows []records.Record) ([]records.Record, error) {
	cols, err := checkTable(schema.TableProductos, header)
	if err != nil {
		return nil, err
	}

	// Some files place the footer under id_producto rather than id_comercio.
	rows = v.dropTrailerRows("productos.csv", rows, "id_producto")
	scrub(rows)
	coerceKinds(rows, cols)

	before := len(rows)
	rows = keep(rows, func(r records.Record) bool {
		return !r.IsNull("id_comercio") && !r.IsNull("id_bandera") && !r.IsNull("id_sucursal") &&
			!r.IsNull("id_producto") && !r.IsNull("productos_precio_lista") &&
			!r.IsNull("productos_descripcion")
	})
	if dropped := before - len(rows); dropped > 0 {
		v.Log.Warn().Int("dropped", dropped).
			Msg("producto rows missing essential fields after soft-cast")
	}

	nonPositive := 0
	for _, r := range rows {
		if price, ok := r["productos_precio_lista"].(float64); ok && price <= 0 {
			nonPositive++
		}
	}
	if nonPositive > 0 {
		v.Log.Warn().Int("rows", nonPositive).
			Msg("producto rows with non-positive list price kept for audit; excluded from fact load")
	}
	return rows, nil
}

// dropTrailerRows removes footer rows wherever they appear, first or last.
func (v *Validator) dropTrailerRows(file string, rows []records.Record, markerCol string) []records.Record {
	before := len(rows)
	rows = keep(rows, func(r records.Record) bool {
		s, ok := r[markerCol].(string)
		if !ok {
			return true
		}
		return !strings.Contains(strings.ToLower(s), trailerMarker)
	})
	if dropped := before - len(rows); dropped > 0 {
		v.Log.Debug().Str("file", file).Int("rows", dropped).Msg("dropped trailer rows")
	}
	if len(rows) == 0 {
		v.Log.Warn().Str("file", file).Msg("no data rows after trailer removal")
	}
	return rows
}

// checkTipoVocabulary normalizes sucursales_tipo and logs values outside the
// known vocabulary, keeping the rows.
func (v *Validator) checkTipoVocabulary(rows []records.Record) {
	unknown := 0
	samples := map[string]struct{}{}
	for _, r := range rows {
		s, ok := r["sucursales_tipo"].(string)
		if !ok {
			continue
		}
		tipo := strings.ToLower(strings.TrimSpace(s))
		r["sucursales_tipo"] = tipo
		if _, known := ValidSucursalTypes[tipo]; !known {
			unknown++
			if len(samples) < 10 {
				samples[tipo] = struct{}{}
			}
		}
	}
	if unknown > 0 {
		list := make([]string, 0, len(samples))
		for s := range samples {
			list = append(list, s)
		}
		sort.Strings(list)
		v.Log.Warn().Int("rows", unknown).Strs("samples", list).
			Msg("unknown sucursal types kept")
	}
}

// CheckColumns verifies that a member file's header covers the registry's
// required columns for its table, without touching any rows. Callers use it
// to reject one file's contribution before merging across archives.
func CheckColumns(t schema.Table, header []string) error {
	_, err := checkTable(t, header)
	return err
}

// checkTable resolves the registry declaration for t and verifies header
// against its required columns.
func checkTable(t schema.Table, header []string) ([]schema.Column, error) {
	cols, err := schema.Columns(t)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(string(t)+".csv", header, schema.Required(cols)); err != nil {
		return nil, err
	}
	return cols, nil
}

// checkColumns verifies that header is a superset of required.
func checkColumns(file string, header, required []string) error {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}
	var missing []string
	for _, c := range required {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &SchemaError{File: file, Missing: missing}
	}
	return nil
}

// scrub removes embedded null bytes and surrounding whitespace from every
// string value, in place.
func scrub(rows []records.Record) {
	for _, r := range rows {
		for k, val := range r {
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
				if s == "" {
					r[k] = nil
				} else {
					r[k] = s
				}
			}
		}
	}
}

// keep filters rows in place, reusing the backing array.
func keep(rows []records.Record, pred func(records.Record) bool) []records.Record {
	out := rows[:0]
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
