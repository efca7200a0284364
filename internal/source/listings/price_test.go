package listings

import "testing"

func TestParsePriceText(t *testing.T) {
	cases := map[string]int{
		"12억 5,000": 125000,
		"3억":        30000,
		"5,500":     5500,
		"":          0,
		"??":        0,
		"24억":       240000,
		"23억 5,000": 235000,
	}
	for in, want := range cases {
		if got := ParsePriceText(in); got != want {
			t.Errorf("ParsePriceText(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseFloor(t *testing.T) {
	if got := ParseFloor("12/25"); got == nil || *got != 12 {
		t.Errorf("expected floor 12, got %v", got)
	}
	if got := ParseFloor("저"); got != nil {
		t.Errorf("expected nil for coarse token, got %v", *got)
	}
	if got := ParseFloor(""); got != nil {
		t.Errorf("expected nil for empty")
	}
}
