package validate

import (
	"reflect"
	"testing"
)

func TestSoftIDString(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"1.0", "1"},
		{"1.00", "1"},
		{"42", "42"},
		{" 7 ", "7"},
		{"1.5", "1.5"}, // non-zero fraction is not a spurious tail
		{"abc", "abc"},
		{"", nil},
		{nil, nil},
		{int64(3), int64(3)},
	}
	for _, tc := range cases {
		if got := softIDString(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("softIDString(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSoftInt(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"1", int64(1)},
		{"1.0", int64(1)},
		{"2.9", int64(2)}, // truncation, not rounding
		{"-3", int64(-3)},
		{"abc", nil},
		{"", nil},
		{"NaN", nil},
		{nil, nil},
	}
	for _, tc := range cases {
		if got := softInt(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("softInt(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSoftFloat(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"100.0", 100.0},
		{"0.5", 0.5},
		{"-1", -1.0},
		{"abc", nil},
		{"", nil},
		{nil, nil},
	}
	for _, tc := range cases {
		if got := softFloat(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("softFloat(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTriBool(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"1", true},
		{"true", true},
		{"True", true},
		{"0", false},
		{"false", false},
		{"False", false},
		{"", false},
		{"maybe", nil},
		{"2", nil},
		{nil, nil},
	}
	for _, tc := range cases {
		if got := triBool(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("triBool(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
