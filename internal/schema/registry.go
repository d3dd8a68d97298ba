// Package schema is the registry of expected column sets for the three SEPA
// member files. Every column is declared as raw text and read as text first;
// the validator applies each column's declared Kind afterwards. This avoids
// the inference problems the upstream feed is known for (ids serialized as
// "1.0", inconsistent decimal formats) corrupting a whole batch.
package schema

import "fmt"

// Table identifies one of the three member-file layouts.
type Table string

const (
	TableComercio   Table = "comercio"
	TableSucursales Table = "sucursales"
	TableProductos  Table = "productos"
)

// Kind is the semantic type a column is coerced to after the text-first read.
type Kind string

const (
	KindText  Kind = "text"
	KindID    Kind = "id" // text identity, repaired when serialized as a float
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindBool  Kind = "bool"
)

// Column pairs a canonical column name with its semantic type. Required
// columns must be present in the member file's header; their absence is a
// schema error for that file.
type Column struct {
	Name     string
	Kind     Kind
	Required bool
}

var comercioColumns = []Column{
	{"id_comercio", KindID, true},
	{"id_bandera", KindInt, true},
	{"comercio_cuit", KindInt, true},
	{"comercio_razon_social", KindText, true},
	{"comercio_bandera_nombre", KindText, true},
	{"comercio_bandera_url", KindText, true},
	{"comercio_ultima_actualizacion", KindText, true},
	{"comercio_version_sepa", KindFloat, true},
}

var sucursalesColumns = []Column{
	{"id_comercio", KindID, true},
	{"id_bandera", KindInt, true},
	{"id_sucursal", KindInt, true},
	{"sucursales_nombre", KindText, true},
	{"sucursales_tipo", KindText, true},
	{"sucursales_calle", KindText, false},
	{"sucursales_numero", KindText, false},
	{"sucursales_latitud", KindText, false},
	{"sucursales_longitud", KindText, false},
	{"sucursales_observaciones", KindText, false},
	{"sucursales_barrio", KindText, false},
	{"sucursales_codigo_postal", KindInt, false},
	{"sucursales_localidad", KindText, true},
	{"sucursales_provincia", KindText, true},
	{"sucursales_lunes_horario_atencion", KindText, false},
	{"sucursales_martes_horario_atencion", KindText, false},
	{"sucursales_miercoles_horario_atencion", KindText, false},
	{"sucursales_jueves_horario_atencion", KindText, false},
	{"sucursales_viernes_horario_atencion", KindText, false},
	{"sucursales_sabado_horario_atencion", KindText, false},
	{"sucursales_domingo_horario_atencion", KindText, false},
}

var productosColumns = []Column{
	{"id_comercio", KindID, true},
	{"id_bandera", KindInt, true},
	{"id_sucursal", KindInt, true},
	{"id_producto", KindInt, true},
	{"productos_ean", KindBool, true},
	{"productos_descripcion", KindText, true},
	{"productos_cantidad_presentacion", KindText, false},
	{"productos_unidad_medida_presentacion", KindText, false},
	{"productos_marca", KindText, true},
	{"productos_precio_lista", KindFloat, true},
	{"productos_precio_referencia", KindFloat, false},
	{"productos_cantidad_referencia", KindText, false},
	{"productos_unidad_medida_referencia", KindText, false},
	{"productos_precio_unitario_promo1", KindFloat, false},
	{"productos_leyenda_promo1", KindText, false},
	{"productos_precio_unitario_promo2", KindFloat, false},
	{"productos_leyenda_promo2", KindText, false},
}

// Columns returns the ordered column declaration for a table. Unknown tables
// are a configuration error, not a data error, and fail closed.
func Columns(t Table) ([]Column, error) {
	switch t {
	case TableComercio:
		return comercioColumns, nil
	case TableSucursales:
		return sucursalesColumns, nil
	case TableProductos:
		return productosColumns, nil
	default:
		return nil, fmt.Errorf("schema: unknown table type %q", t)
	}
}

// Names returns just the column names of cols, in declaration order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Required returns the names of the required columns of cols, in declaration
// order.
func Required(cols []Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}
