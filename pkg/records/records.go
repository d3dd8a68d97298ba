// Package records defines the dynamic row representation shared by the
// parser, validator, and storage layers. A Record maps column names to
// values; raw rows hold strings (or nil for source nulls) and validation
// replaces values in place with typed Go values.
package records

// Record is one logical row keyed by canonical column name.
type Record map[string]any

// String returns the string value for col, or "" when the value is absent,
// nil, or not a string.
func (r Record) String(col string) string {
	if v, ok := r[col]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IsNull reports whether col is absent, nil, or an empty string.
func (r Record) IsNull(col string) bool {
	v, ok := r[col]
	if !ok || v == nil {
		return true
	}
	s, isStr := v.(string)
	return isStr && s == ""
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
