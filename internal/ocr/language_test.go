package ocr

import "testing"

func TestTesseractCode(t *testing.T) {
	tests := []struct {
		hint string
		want string
	}{
		{"en", "eng"},
		{"en-GB", "eng"},
		{"en_US", "eng"},
		{"it", "ita"},
		{"pt-BR", "por"},
		{"de-AT", "deu"},
		{"xx", ""},
		{"", ""},
		{"not a tag", ""},
	}

	for _, tt := range tests {
		if got := TesseractCode(tt.hint); got != tt.want {
			t.Errorf("TesseractCode(%q) = %q, want %q", tt.hint, got, tt.want)
		}
	}
}
