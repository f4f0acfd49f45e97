package grid

import "testing"

func TestParsePower(t *testing.T) {
	cases := map[string]float64{
		"54.8M":   54.8,
		" 10M ":   10,
		"12":      12,
		"12 M":    12,
		"":        0,
		"lots":    0,
		"10m":     0,
		"NaN":     0,
		"1.5e1M":  15,
		"  7.25 ": 7.25,
	}
	for in, want := range cases {
		if got := ParsePower(in); got != want {
			t.Fatalf("ParsePower(%q)=%v want %v", in, got, want)
		}
	}
}

func TestParseHQ(t *testing.T) {
	if hq, ok := ParseHQ(""); !ok || hq != nil {
		t.Fatalf("empty hq: %v %v", hq, ok)
	}
	if hq, ok := ParseHQ(" 29 "); !ok || hq == nil || *hq != 29 {
		t.Fatalf("hq 29: %v %v", hq, ok)
	}
	for _, bad := range []string{"x", "-1", "2.5"} {
		if _, ok := ParseHQ(bad); ok {
			t.Fatalf("ParseHQ(%q) should fail", bad)
		}
	}
}
