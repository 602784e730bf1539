package store

import "testing"

func TestNormalizeTestName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"test_foo", "test_foo"},
		{"test_foo[bar]", "test_foo"},
		{"test_foo[bar][baz]", "test_foo[bar]"},
		{"test_foo[]", "test_foo"},
	}
	for _, tt := range tests {
		if got := NormalizeTestName(tt.in); got != tt.want {
			t.Errorf("NormalizeTestName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeriveTestcaseModule(t *testing.T) {
	tests := []struct {
		in   string
		want *string
	}{
		{"data_plane/tests/business_policy/test_foo.py", strPtr("business_policy")},
		{"data_plane/tests/routing/nested/test_bar.py", strPtr("routing")},
		{"some/other/path/test_baz.py", nil},
	}
	for _, tt := range tests {
		got := DeriveTestcaseModule(tt.in)
		if (got == nil) != (tt.want == nil) {
			t.Fatalf("DeriveTestcaseModule(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got != nil && *got != *tt.want {
			t.Errorf("DeriveTestcaseModule(%q) = %q, want %q", tt.in, *got, *tt.want)
		}
	}
}

func strPtr(s string) *string { return &s }
