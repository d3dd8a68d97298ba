package refcheck

import (
	"testing"

	"github.com/rs/zerolog"

	"sepaetl/pkg/records"
)

func comercio(id string, bandera int64) records.Record {
	return records.Record{"id_comercio": id, "id_bandera": bandera}
}

func sucursal(id string, bandera, sucursal int64) records.Record {
	return records.Record{"id_comercio": id, "id_bandera": bandera, "id_sucursal": sucursal}
}

func producto(id string, bandera, suc, prod int64) records.Record {
	return records.Record{
		"id_comercio": id, "id_bandera": bandera, "id_sucursal": suc, "id_producto": prod,
	}
}

func newFilter() *Filter { return &Filter{Log: zerolog.Nop()} }

func TestApplyDropsOrphanSucursales(t *testing.T) {
	comercios := []records.Record{comercio("C1", 1)}
	sucursales := []records.Record{
		sucursal("C1", 1, 1),
		sucursal("C2", 2, 1), // no matching comercio
	}
	gotSuc, _ := newFilter().Apply(comercios, sucursales, nil)
	if len(gotSuc) != 1 {
		t.Fatalf("got %d sucursales, want 1", len(gotSuc))
	}
	if gotSuc[0]["id_comercio"] != "C1" {
		t.Errorf("wrong survivor: %v", gotSuc[0])
	}
}

func TestApplyDropsOrphanProductos(t *testing.T) {
	comercios := []records.Record{comercio("C1", 1)}
	sucursales := []records.Record{sucursal("C1", 1, 1)}
	productos := []records.Record{
		producto("C1", 1, 1, 100),
		producto("C1", 1, 2, 101), // sucursal 2 does not exist
	}
	_, gotProd := newFilter().Apply(comercios, sucursales, productos)
	if len(gotProd) != 1 {
		t.Fatalf("got %d productos, want 1", len(gotProd))
	}
	if gotProd[0]["id_producto"] != int64(100) {
		t.Errorf("wrong survivor: %v", gotProd[0])
	}
}

func TestApplyCascades(t *testing.T) {
	// A producto under an orphaned sucursal must fall with it.
	comercios := []records.Record{comercio("C1", 1)}
	sucursales := []records.Record{
		sucursal("C1", 1, 1),
		sucursal("C2", 2, 7), // orphan
	}
	productos := []records.Record{
		producto("C1", 1, 1, 100),
		producto("C2", 2, 7, 200), // resolves to the orphan branch
	}
	gotSuc, gotProd := newFilter().Apply(comercios, sucursales, productos)
	if len(gotSuc) != 1 || len(gotProd) != 1 {
		t.Fatalf("got %d sucursales, %d productos; want 1 and 1", len(gotSuc), len(gotProd))
	}
	if gotProd[0]["id_producto"] != int64(100) {
		t.Errorf("cascade failed: %v", gotProd[0])
	}
}

func TestApplyEmptyParents(t *testing.T) {
	// No comercios: everything downstream is orphaned; no error.
	sucursales := []records.Record{sucursal("C1", 1, 1)}
	productos := []records.Record{producto("C1", 1, 1, 100)}
	gotSuc, gotProd := newFilter().Apply(nil, sucursales, productos)
	if len(gotSuc) != 0 || len(gotProd) != 0 {
		t.Fatalf("got %d sucursales, %d productos; want 0 and 0", len(gotSuc), len(gotProd))
	}
}

func TestKeyOfStructural(t *testing.T) {
	// ("ab",1) vs ("a",11): length prefixing must keep these distinct.
	a, okA := keyOf(records.Record{"id_comercio": "ab", "id_bandera": int64(1)}, false)
	b, okB := keyOf(records.Record{"id_comercio": "a", "id_bandera": int64(11)}, false)
	if !okA || !okB {
		t.Fatal("keys should be computable")
	}
	if a == b {
		t.Error("structurally different keys must not collide")
	}
}

func TestKeyOfMissingField(t *testing.T) {
	if _, ok := keyOf(records.Record{"id_comercio": "a"}, false); ok {
		t.Error("missing id_bandera must not produce a key")
	}
}
