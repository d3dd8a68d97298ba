// Package fecha provides Argentina-local date helpers. The SEPA feed is
// published one archive set per calendar day in Argentina time (UTC-3, no
// DST), so "today" must be computed in that zone rather than the host's.
package fecha

import "time"

// Zone is the fixed Argentina offset. The country does not currently observe
// daylight saving, so a fixed zone avoids a tzdata dependency.
var Zone = time.FixedZone("ART", -3*60*60)

// diasEspanol maps time.Weekday to the lowercase Spanish day names used in
// the published archive file names (no accents, per the feed).
var diasEspanol = map[time.Weekday]string{
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miercoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sabado",
	time.Sunday:    "domingo",
}

// Ahora returns the current Argentina-local time.
func Ahora() time.Time { return time.Now().In(Zone) }

// Hoy returns today's date in Argentina time, truncated to midnight.
func Hoy() time.Time {
	now := Ahora()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, Zone)
}

// ISO formats a date as YYYY-MM-DD, the layout used for the per-date input
// directories and the fact partition names.
func ISO(d time.Time) string { return d.Format("2006-01-02") }

// ParseISO parses a YYYY-MM-DD date into an Argentina-local midnight.
func ParseISO(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, Zone)
}

// NombreDia returns the Spanish weekday name for d as used in archive file
// names (e.g. "sepa_jueves.zip").
func NombreDia(d time.Time) string { return diasEspanol[d.Weekday()] }
