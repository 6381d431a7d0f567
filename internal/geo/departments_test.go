package geo

import "testing"

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"single digit is zero padded", "1", "01"},
		{"two digits unchanged", "75", "75"},
		{"overseas code unchanged", "971", "971"},
		{"corsica 201 maps to 2A", "201", "2A"},
		{"corsica 202 maps to 2B", "202", "2B"},
		{"lowercase corsica uppercased", "2a", "2A"},
		{"whitespace trimmed", " 75 ", "75"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCode(tt.raw); got != tt.want {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMetropolitanCodes(t *testing.T) {
	codes := MetropolitanCodes()

	if len(codes) != 96 {
		t.Fatalf("expected 96 metropolitan codes, got %d", len(codes))
	}

	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}

	if _, ok := set["20"]; ok {
		t.Error("code 20 should not exist, Corsica is split into 2A/2B")
	}
	for _, c := range []string{"01", "2A", "2B", "95"} {
		if _, ok := set[c]; !ok {
			t.Errorf("expected metropolitan code %q", c)
		}
	}
	for _, c := range []string{"971", "972", "973", "974", "976"} {
		if _, ok := set[c]; ok {
			t.Errorf("overseas code %q should not be metropolitan", c)
		}
	}
}

func TestCodes(t *testing.T) {
	codes := Codes()

	if len(codes) != 101 {
		t.Fatalf("expected 101 reference codes, got %d", len(codes))
	}

	// Corsica sorts where 20 would be.
	pos := make(map[string]int, len(codes))
	for i, c := range codes {
		pos[c] = i
	}
	if !(pos["19"] < pos["2A"] && pos["2A"] < pos["2B"] && pos["2B"] < pos["21"]) {
		t.Errorf("2A/2B should sort between 19 and 21, got order %v", codes[18:22])
	}

	// Overseas departments come last.
	if codes[len(codes)-1] != "976" {
		t.Errorf("expected 976 last, got %q", codes[len(codes)-1])
	}
}

func TestIsKnown(t *testing.T) {
	for _, c := range []string{"01", "2A", "75", "971"} {
		if !IsKnown(c) {
			t.Errorf("IsKnown(%q) should be true", c)
		}
	}
	for _, c := range []string{"", "20", "96", "975", "999", "XX"} {
		if IsKnown(c) {
			t.Errorf("IsKnown(%q) should be false", c)
		}
	}
}

func TestName(t *testing.T) {
	if got := Name("75"); got != "Paris" {
		t.Errorf("Name(75) = %q, want Paris", got)
	}
	if got := Name("2B"); got != "Haute-Corse" {
		t.Errorf("Name(2B) = %q, want Haute-Corse", got)
	}
	if got := Name("999"); got != "Département" {
		t.Errorf("Name(999) = %q, want fallback name", got)
	}
}

func TestEveryCodeHasAName(t *testing.T) {
	for _, c := range Codes() {
		if !IsKnown(c) {
			t.Errorf("reference code %q has no name entry", c)
		}
	}
}
