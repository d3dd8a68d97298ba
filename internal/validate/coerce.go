package validate

import (
	"math"
	"strconv"
	"strings"

	"sepaetl/internal/schema"
	"sepaetl/pkg/records"
)

// coerceKinds applies each column's registry-declared kind to every row, in
// place. Text columns pass through untouched; a value that fails its
// coercion becomes nil.
func coerceKinds(rows []records.Record, cols []schema.Column) {
	for _, r := range rows {
		for _, c := range cols {
			switch c.Kind {
			case schema.KindID:
				r[c.Name] = softIDString(r[c.Name])
			case schema.KindInt:
				r[c.Name] = softInt(r[c.Name])
			case schema.KindFloat:
				r[c.Name] = softFloat(r[c.Name])
			case schema.KindBool:
				r[c.Name] = triBool(r[c.Name])
			}
		}
	}
}

// softIDString normalizes a text identity value, stripping the spurious
// decimal tail some files carry ("1.0" -> "1"). The value stays a string;
// identity columns in the comercio feed are not guaranteed numeric. A value
// that cannot be normalized is returned trimmed as-is, never an error.
func softIDString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if dot := strings.IndexByte(s, '.'); dot > 0 && strings.Trim(s[dot+1:], "0") == "" {
		s = s[:dot]
	}
	return s
}

// softInt coerces a text value to int64 through a float-then-truncate path,
// tolerating upstream values like "1.0". Failure yields nil.
func softInt(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return int64(f)
}

// softFloat coerces a text value to float64. Failure yields nil.
func softFloat(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

// triBool parses the barcode-present flag: {"1","true"} -> true,
// {"0","false",""} -> false, anything else -> nil. Comparison is
// case-insensitive on the word forms, matching the feed's mixed "True"/"true"
// serialization.
func triBool(v any) any {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true
	case "0", "false", "":
		return false
	default:
		return nil
	}
}
