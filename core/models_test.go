package core

import (
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	id1 := IDFromContent("ukpga/2020/5")
	id2 := IDFromContent("ukpga/2020/5")

	if id1 != id2 {
		t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
	}

	if IDFromContent("ukpga/2020/5") == IDFromContent("ukpga/2020/6") {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestDocumentIdentifier_String(t *testing.T) {
	tests := []struct {
		name  string
		ident DocumentIdentifier
		want  string
	}{
		{
			name: "calendar scheme",
			ident: DocumentIdentifier{
				Type:   "ukpga",
				Scheme: SchemeCalendar,
				Year:   2020,
				Number: 5,
			},
			want: "ukpga/2020/5",
		},
		{
			name: "regnal scheme",
			ident: DocumentIdentifier{
				Type:       "ukpga",
				Scheme:     SchemeRegnal,
				Year:       1801,
				Monarch:    "Geo3",
				RegnalYear: "41",
				Number:     12,
			},
			want: "ukpga/Geo3/41/12",
		},
		{
			name: "regnal scheme with session span",
			ident: DocumentIdentifier{
				Type:       "ukpga",
				Scheme:     SchemeRegnal,
				Year:       1900,
				Monarch:    "Vict",
				RegnalYear: "63-64",
				Number:     7,
			},
			want: "ukpga/Vict/63-64/7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ident.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentIdentifier_RecordID_Stable(t *testing.T) {
	ident := DocumentIdentifier{Type: "uksi", Scheme: SchemeCalendar, Year: 2021, Number: 100}
	if ident.RecordID() != ident.RecordID() {
		t.Error("RecordID() is not stable")
	}
}

func TestParseIdentifierPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    DocumentIdentifier
		wantErr bool
	}{
		{
			name: "calendar path",
			path: "ukpga/2020/5",
			want: DocumentIdentifier{Type: "ukpga", Scheme: SchemeCalendar, Year: 2020, Number: 5},
		},
		{
			name: "regnal path",
			path: "ukpga/Geo3/41/12",
			want: DocumentIdentifier{Type: "ukpga", Scheme: SchemeRegnal, Monarch: "Geo3", RegnalYear: "41", Number: 12},
		},
		{
			name: "id prefix tolerated",
			path: "/id/ukpga/2020/5",
			want: DocumentIdentifier{Type: "ukpga", Scheme: SchemeCalendar, Year: 2020, Number: 5},
		},
		{
			name:    "too few segments",
			path:    "ukpga/2020",
			wantErr: true,
		},
		{
			name:    "non-numeric number",
			path:    "ukpga/2020/five",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentifierPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseIdentifierPath(%q) expected error", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIdentifierPath(%q) error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("ParseIdentifierPath(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParsedDocument_RecordID_PathScoped(t *testing.T) {
	ident := DocumentIdentifier{Type: "ukpga", Scheme: SchemeCalendar, Year: 2020, Number: 5}
	whole := &ParsedDocument{Ident: ident, Unit: KindDocument}
	provision := &ParsedDocument{Ident: ident, Unit: KindProvision, Path: "section 1"}

	if whole.RecordID() != ident.RecordID() {
		t.Error("whole-document record ID should equal identifier record ID")
	}
	if whole.RecordID() == provision.RecordID() {
		t.Error("provision record ID should differ from whole-document record ID")
	}
}

func TestCheckpointRecord_Apply(t *testing.T) {
	rec := NewCheckpointRecord("ukpga", 2020)
	now := time.Now().UTC()

	rec.Apply(OutcomeRecord{Ident: "ukpga/2020/1", Outcome: OutcomeFailedRetryable, Reason: "timeout", At: now})
	if len(rec.Retryable) != 1 {
		t.Fatalf("expected 1 retryable, got %d", len(rec.Retryable))
	}

	// Terminal outcome supersedes the retryable one.
	rec.Apply(OutcomeRecord{Ident: "ukpga/2020/1", Outcome: OutcomeDone, At: now})
	if len(rec.Retryable) != 0 {
		t.Errorf("retryable entry should be cleared by terminal outcome")
	}
	if !rec.Seen("ukpga/2020/1") {
		t.Errorf("completed identifier should be seen")
	}

	// A stale retryable outcome never downgrades a terminal one.
	rec.Apply(OutcomeRecord{Ident: "ukpga/2020/1", Outcome: OutcomeFailedRetryable, Reason: "late", At: now})
	if len(rec.Retryable) != 0 {
		t.Errorf("terminal outcome must not be downgraded to retryable")
	}
}

func TestCheckpointRecord_IsComplete(t *testing.T) {
	rec := NewCheckpointRecord("ukpga", 2020)
	now := time.Now().UTC()

	if rec.IsComplete() {
		t.Error("empty record should not be complete")
	}

	rec.Meta.Candidates = 2
	rec.Apply(OutcomeRecord{Ident: "ukpga/2020/1", Outcome: OutcomeDone, At: now})
	if rec.IsComplete() {
		t.Error("partially processed combination should not be complete")
	}

	rec.Apply(OutcomeRecord{Ident: "ukpga/2020/2", Outcome: OutcomeFailedPermanent, Reason: "parse error", At: now})
	if !rec.IsComplete() {
		t.Error("completed + permanently failed covering candidates should be complete")
	}

	rec2 := NewCheckpointRecord("ukpga", 2021)
	rec2.Meta.Candidates = 1
	rec2.Apply(OutcomeRecord{Ident: "ukpga/2021/1", Outcome: OutcomeFailedRetryable, Reason: "downstream", At: now})
	if rec2.IsComplete() {
		t.Error("combination with retryable identifiers should not be complete")
	}
}

func TestOutcomeRecordMUS_Roundtrip(t *testing.T) {
	in := OutcomeRecord{
		Ident:   "ukpga/Geo3/41/12",
		Outcome: OutcomeFallback,
		Reason:  "",
		At:      time.Now().UTC().Truncate(time.Microsecond),
	}

	bs := make([]byte, OutcomeRecordMUS.Size(in))
	OutcomeRecordMUS.Marshal(in, bs)

	out, n, err := OutcomeRecordMUS.Unmarshal(bs)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if n != len(bs) {
		t.Errorf("Unmarshal consumed %d bytes, want %d", n, len(bs))
	}
	if out.Ident != in.Ident || out.Outcome != in.Outcome || !out.At.Equal(in.At) {
		t.Errorf("roundtrip mismatch: %+v vs %+v", out, in)
	}
}

func TestCachedResponseMUS_Roundtrip(t *testing.T) {
	in := CachedResponse{
		URL:       "https://example.test/ukpga/2020/5/data.xml",
		Status:    200,
		MediaType: "application/xml",
		Body:      []byte("<Legislation/>"),
		FetchedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	bs := make([]byte, CachedResponseMUS.Size(in))
	CachedResponseMUS.Marshal(in, bs)

	out, _, err := CachedResponseMUS.Unmarshal(bs)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if out.URL != in.URL || out.Status != in.Status || string(out.Body) != string(in.Body) {
		t.Errorf("roundtrip mismatch: %+v vs %+v", out, in)
	}
}
