package ocr

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "IDENTITY CARD", "IDENTITY CARD"},
		{"null bytes", "ID\x00 CARD", "ID CARD"},
		{"control characters", "ID\x07\x1f CARD", "ID CARD"},
		{"replacement characters", "NA�ME", "NAME"},
		{"collapses spaces", "DATE   OF    BIRTH", "DATE OF BIRTH"},
		{"tabs to spaces", "DATE\tOF\tBIRTH", "DATE OF BIRTH"},
		{"trims lines", "  SURNAME  \n  NAME  ", "SURNAME\nNAME"},
		{"drops empty lines", "SURNAME\n\n\n\nNAME", "SURNAME\nNAME"},
		{"garbage question runs", "NAME ???? HERE", "NAME HERE"},
		{"garbage bullet runs", "NAME •••••• HERE", "NAME HERE"},
		{"short runs survive", "IS IT? OR??", "IS IT? OR??"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanTextPreservesMRZDelimiter(t *testing.T) {
	in := "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	if got := CleanText(in); got != in {
		t.Errorf("MRZ line must survive cleanup: got %q", got)
	}
}
