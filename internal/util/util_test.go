package util

import "testing"

func TestAsInt64(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(5), 5, true},
		{7, 7, true},
		{float64(42), 42, true},
		{"13", 13, true},
		{" 13 ", 13, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := AsInt64(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("AsInt64(%v) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAsBool(t *testing.T) {
	truthy := []any{true, int64(1), 1, float64(1), "1", "true", "t"}
	for _, in := range truthy {
		if !AsBool(in) {
			t.Errorf("AsBool(%v) = false", in)
		}
	}
	falsy := []any{false, int64(0), 0, float64(0), "0", "no", nil}
	for _, in := range falsy {
		if AsBool(in) {
			t.Errorf("AsBool(%v) = true", in)
		}
	}
}

func TestAsString(t *testing.T) {
	if got := AsString("x"); got != "x" {
		t.Errorf("AsString(x) = %q", got)
	}
	if got := AsString([]byte("y")); got != "y" {
		t.Errorf("AsString([]byte) = %q", got)
	}
	if got := AsString(nil); got != "" {
		t.Errorf("AsString(nil) = %q", got)
	}
	if got := AsString(42); got != "" {
		t.Errorf("AsString(42) = %q", got)
	}
}

func TestHideAPIKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"sk-1234567890abcdef", "sk-1...cdef"},
		{"abcdef", "ab...ef"},
		{"abc", "a...c"},
		{"ab", "ab"},
	}
	for _, tc := range cases {
		if got := HideAPIKey(tc.in); got != tc.want {
			t.Errorf("HideAPIKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
