package crawl

import "testing"

func TestParseBuiltYear(t *testing.T) {
	cases := []struct {
		in   string
		want *int
	}{
		{"19980315", intPtr(1998)},
		{"2005", intPtr(2005)},
		{"", nil},
		{"ab", nil},
		{"99", nil},
	}
	for _, c := range cases {
		got := parseBuiltYear(c.in)
		if (got == nil) != (c.want == nil) {
			t.Errorf("parseBuiltYear(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		if got != nil && *got != *c.want {
			t.Errorf("parseBuiltYear(%q) = %d, want %d", c.in, *got, *c.want)
		}
	}
}

func intPtr(n int) *int { return &n }
