package normalize

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Vías", "vias"},
		{"  VIAS  ", "vias"},
		{"Comuna   19", "comuna 19"},
		{"El Peñón", "el penon"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanLabel(t *testing.T) {
	if got := CleanLabel("  San   Antonio\t"); got != "San Antonio" {
		t.Errorf("CleanLabel() = %q, want %q", got, "San Antonio")
	}
}
