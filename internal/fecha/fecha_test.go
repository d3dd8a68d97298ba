package fecha

import (
	"testing"
	"time"
)

func TestISORoundTrip(t *testing.T) {
	d, err := ParseISO("2025-11-23")
	if err != nil {
		t.Fatal(err)
	}
	if got := ISO(d); got != "2025-11-23" {
		t.Errorf("ISO = %q", got)
	}
	if d.Location() != Zone {
		t.Errorf("parsed date not in Argentina zone: %v", d.Location())
	}
}

func TestParseISORejectsGarbage(t *testing.T) {
	if _, err := ParseISO("23/11/2025"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestNombreDia(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2025-11-23", "domingo"},
		{"2025-11-24", "lunes"},
		{"2025-11-26", "miercoles"},
		{"2025-11-29", "sabado"},
	}
	for _, tc := range cases {
		d, err := ParseISO(tc.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := NombreDia(d); got != tc.want {
			t.Errorf("NombreDia(%s) = %q, want %q", tc.date, got, tc.want)
		}
	}
}

func TestHoyIsMidnight(t *testing.T) {
	d := Hoy()
	if d.Hour() != 0 || d.Minute() != 0 || d.Second() != 0 {
		t.Errorf("Hoy not truncated to midnight: %v", d)
	}
	if d.Location() != Zone {
		t.Errorf("Hoy not in Argentina zone: %v", d.Location())
	}
	if time.Since(d) > 25*time.Hour {
		t.Errorf("Hoy too far in the past: %v", d)
	}
}
