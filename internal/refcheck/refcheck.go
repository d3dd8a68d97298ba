// Package refcheck enforces referential integrity between the validated
// entity sets with set semantics: parent keys are projected once into a hash
// set and children are anti-joined against it, so cost scales with distinct
// key counts rather than row counts. The filter never fails; unresolved rows
// are dropped and counted.
package refcheck

import (
	"encoding/binary"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"sepaetl/pkg/records"
)

// Filter holds the injected reporting context.
type Filter struct {
	Log zerolog.Logger
}

// Apply drops sucursales whose (id_comercio, id_bandera) is absent from the
// comercio set, then drops productos whose (id_comercio, id_bandera,
// id_sucursal) is absent from the surviving sucursal set. Orphan counts are
// logged per relation. The returned slices reuse the input backing arrays.
func (f *Filter) Apply(comercios, sucursales, productos []records.Record) ([]records.Record, []records.Record) {
	comercioKeys := project(comercios, false)
	before := len(sucursales)
	sucursales = keepResolved(sucursales, comercioKeys, false)
	if orphans := before - len(sucursales); orphans > 0 {
		f.Log.Warn().Int("orphans", orphans).
			Msg("sucursales referencing missing comercios dropped")
	}

	sucursalKeys := project(sucursales, true)
	before = len(productos)
	productos = keepResolved(productos, sucursalKeys, true)
	if orphans := before - len(productos); orphans > 0 {
		f.Log.Warn().Int("orphans", orphans).
			Msg("productos referencing missing sucursales dropped")
	}
	return sucursales, productos
}

// project builds the distinct key set of rows. withSucursal selects the
// three-part branch key over the two-part merchant key.
func project(rows []records.Record, withSucursal bool) map[uint64]struct{} {
	keys := make(map[uint64]struct{}, len(rows))
	for _, r := range rows {
		if k, ok := keyOf(r, withSucursal); ok {
			keys[k] = struct{}{}
		}
	}
	return keys
}

func keepResolved(rows []records.Record, parents map[uint64]struct{}, withSucursal bool) []records.Record {
	out := rows[:0]
	for _, r := range rows {
		k, ok := keyOf(r, withSucursal)
		if !ok {
			continue
		}
		if _, found := parents[k]; found {
			out = append(out, r)
		}
	}
	return out
}

// keyOf hashes the composite foreign key into a single uint64. Fields are
// length-prefixed so ("ab",1) and ("a",11) cannot collide structurally.
func keyOf(r records.Record, withSucursal bool) (uint64, bool) {
	buf := make([]byte, 0, 64)

	id, ok := r["id_comercio"].(string)
	if !ok {
		return 0, false
	}
	buf = binary.AppendUvarint(buf, uint64(len(id)))
	buf = append(buf, id...)

	bandera, ok := asInt64(r["id_bandera"])
	if !ok {
		return 0, false
	}
	buf = binary.AppendVarint(buf, bandera)

	if withSucursal {
		sucursal, ok := asInt64(r["id_sucursal"])
		if !ok {
			return 0, false
		}
		buf = binary.AppendVarint(buf, sucursal)
	}
	return xxh3.Hash(buf), true
}

// asInt64 accepts the post-validation int64 form and the raw string form.
func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
