package validate

// ValidSucursalTypes is the known branch-type vocabulary, normalized to
// lowercase. The field is an open vocabulary upstream, so membership is
// advisory: unknown values are logged, never dropped.
var ValidSucursalTypes = map[string]struct{}{
	"hipermercado":        {},
	"supermercado":        {},
	"autoservicio":        {},
	"tradicional":         {},
	"web":                 {},
	"mini":                {},
	"express":             {},
	"super":               {},
	"mayorista":           {},
	"bazar":               {},
	"hiper":               {},
	"hipermercado local":  {},
	"autoservicio exprés": {},
	"tienda virtual":      {},
	"tienda fisica":       {},
}
