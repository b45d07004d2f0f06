package orchestrator

import "testing"

func TestIsEcho(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		last       string
		threshold  float64
		want       bool
	}{
		{"identical", "Sistemas híbridos en línea.", "Sistemas híbridos en línea.", 0.92, true},
		{"punctuation and case", "sistemas hibridos, en línea", "Sistemas híbridos en línea.", 0.92, true},
		{"unrelated", "¿Qué tacos recomiendas?", "Sistemas híbridos en línea.", 0.92, false},
		{"disabled", "hola", "hola", 0, false},
		{"nothing spoken yet", "hola amigo", "", 0.92, false},
		{"symbols only", "¿?", "¿?", 0.92, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEcho(tt.transcript, tt.last, tt.threshold); got != tt.want {
				t.Errorf("IsEcho(%q, %q) = %v, want %v", tt.transcript, tt.last, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("  ¡Hola,   R2-D2!  "); got != "hola r2 d2" {
		t.Errorf("normalize = %q", got)
	}
}
