package core

import (
	"errors"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		ident   DocumentIdentifier
		wantErr error
	}{
		{
			name:  "valid calendar identifier",
			ident: DocumentIdentifier{Type: "ukpga", Scheme: SchemeCalendar, Year: 2020, Number: 5},
		},
		{
			name:  "valid regnal identifier",
			ident: DocumentIdentifier{Type: "ukpga", Scheme: SchemeRegnal, Year: 1801, Monarch: "Geo3", RegnalYear: "41", Number: 12},
		},
		{
			name:    "unknown type",
			ident:   DocumentIdentifier{Type: "nope", Scheme: SchemeCalendar, Year: 2020, Number: 5},
			wantErr: ErrUnknownDocType,
		},
		{
			name:    "zero number",
			ident:   DocumentIdentifier{Type: "ukpga", Scheme: SchemeCalendar, Year: 2020, Number: 0},
			wantErr: ErrInvalidNumber,
		},
		{
			name:    "calendar scheme before reform",
			ident:   DocumentIdentifier{Type: "ukpga", Scheme: SchemeCalendar, Year: 1801, Number: 5},
			wantErr: ErrInvalidYear,
		},
		{
			name:    "regnal scheme missing monarch",
			ident:   DocumentIdentifier{Type: "ukpga", Scheme: SchemeRegnal, Year: 1801, RegnalYear: "41", Number: 5},
			wantErr: ErrMalformedIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.ident)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateIdentifier() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateIdentifier() = %v, want errors.Is %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrMalformedIdentifier) {
				t.Errorf("all identifier validation failures must wrap ErrMalformedIdentifier, got %v", err)
			}
		})
	}
}

func TestValidateParsedDocument(t *testing.T) {
	valid := &ParsedDocument{
		Ident: DocumentIdentifier{Type: "ukpga", Scheme: SchemeCalendar, Year: 2020, Number: 5},
		Unit:  KindDocument,
		Title: "Example Act 2020",
	}
	if err := ValidateParsedDocument(valid); err != nil {
		t.Fatalf("unexpected error for valid document: %v", err)
	}

	if err := ValidateParsedDocument(nil); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("nil document should be ErrInvalidRecord, got %v", err)
	}

	noTitle := *valid
	noTitle.Title = ""
	if err := ValidateParsedDocument(&noTitle); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("empty title should be ErrEmptyTitle, got %v", err)
	}

	badUnit := *valid
	badUnit.Unit = KindFallback
	if err := ValidateParsedDocument(&badUnit); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("fallback unit kind should be rejected, got %v", err)
	}
}
