package calibration

import (
	"math"
	"testing"

	"ortho-annotator/internal/apperr"
)

func TestMmDistance(t *testing.T) {
	if got := MmDistance(100, 10); got != 10 {
		t.Errorf("MmDistance(100, 10) = %v", got)
	}
	if got := MmDistance(100, 0); got != 10 {
		t.Errorf("zero factor should use default, got %v", got)
	}
	if got := FormatMm(MmDistance(100, 10)); got != "10.0 mm" {
		t.Errorf("FormatMm = %q", got)
	}
	if got := Suggest(123, 10); got != "12.3" {
		t.Errorf("Suggest = %q", got)
	}
}

func TestFactorFromAnswer(t *testing.T) {
	tests := []struct {
		answer  string
		pixels  float64
		want    float64
		wantErr bool
	}{
		{"20", 100, 5, false},
		{" 2.5 ", 50, 20, false},
		{"0", 100, 0, true},
		{"-4", 100, 0, true},
		{"abc", 100, 0, true},
		{"", 100, 0, true},
		{"NaN", 100, 0, true},
		{"10", 0, 0, true},
	}
	for _, tt := range tests {
		got, err := FactorFromAnswer(tt.pixels, tt.answer)
		if tt.wantErr {
			if err == nil {
				t.Errorf("FactorFromAnswer(%v, %q) expected error", tt.pixels, tt.answer)
			} else if apperr.CodeOf(err) != apperr.Invalid {
				t.Errorf("FactorFromAnswer(%q) code = %v", tt.answer, apperr.CodeOf(err))
			}
			continue
		}
		if err != nil || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("FactorFromAnswer(%v, %q) = %v, %v; want %v", tt.pixels, tt.answer, got, err, tt.want)
		}
	}
}
