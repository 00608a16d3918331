package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for delivered records.
// It is derived from the source document identifier so that redelivery
// of the same logical document is idempotent.
type ID uint64

// IDFromContent generates a deterministic ID from text using BLAKE2b hashing.
// Identical input always produces the same ID.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocType identifies a document category in the source corpus,
// e.g. "ukpga" (public general act) or "uksi" (statutory instrument).
type DocType string

// DocClass groups document types by their broad category.
type DocClass int

const (
	// ClassPrimary covers primary legislation (acts).
	ClassPrimary DocClass = iota + 1
	// ClassSecondary covers secondary legislation (instruments, rules, orders).
	ClassSecondary
	// ClassJudgment covers court judgments.
	ClassJudgment
)

// knownDocTypes maps recognized document type codes to their class.
var knownDocTypes = map[DocType]DocClass{
	"ukpga": ClassPrimary,
	"ukla":  ClassPrimary,
	"apgb":  ClassPrimary,
	"aep":   ClassPrimary,
	"asp":   ClassPrimary,
	"anaw":  ClassPrimary,
	"ukcm":  ClassPrimary,
	"uksi":  ClassSecondary,
	"ssi":   ClassSecondary,
	"wsi":   ClassSecondary,
	"nisr":  ClassSecondary,
	"ewhc":  ClassJudgment,
	"ewca":  ClassJudgment,
	"uksc":  ClassJudgment,
}

// Class returns the document class for a type.
// Returns 0 for unknown types; use ValidateDocType to reject those.
func (t DocType) Class() DocClass {
	return knownDocTypes[t]
}

// Scheme discriminates the two numbering epochs used by the source.
type Scheme int

const (
	// SchemeCalendar numbers documents within a calendar year (post-reform).
	SchemeCalendar Scheme = iota + 1
	// SchemeRegnal numbers documents within a monarch's reign-year (pre-reform).
	SchemeRegnal
)

// ReformYear is the first calendar year numbered under the calendar scheme.
// Documents from earlier years are cited by monarch and regnal year.
const ReformYear = 1963

// DocumentIdentifier is the opaque key for one source document.
// It is immutable once resolved and never recomputed mid-pipeline.
type DocumentIdentifier struct {
	Type   DocType
	Scheme Scheme

	// Year is the calendar year. For SchemeRegnal identifiers it holds
	// the calendar year the identifier was resolved from, so both
	// schemes checkpoint under a (type, calendar year) key.
	Year int

	// Monarch and RegnalYear address the era-relative scheme
	// (SchemeRegnal only). RegnalYear may span a session boundary,
	// e.g. "41-42".
	Monarch    string
	RegnalYear string

	Number int
}

// String renders the identifier as its canonical URL path fragment:
// "ukpga/2020/5" or "ukpga/Geo3/41/12".
func (d DocumentIdentifier) String() string {
	if d.Scheme == SchemeRegnal {
		return fmt.Sprintf("%s/%s/%s/%d", d.Type, d.Monarch, d.RegnalYear, d.Number)
	}
	return fmt.Sprintf("%s/%d/%d", d.Type, d.Year, d.Number)
}

// RecordID returns the deterministic delivery ID for this identifier.
func (d DocumentIdentifier) RecordID() ID {
	return IDFromContent(d.String())
}

// ParseIdentifierPath parses a canonical identifier path fragment, e.g.
// "ukpga/2020/5" or "ukpga/Geo3/41/12". Leading URL noise such as an
// "/id/" prefix is tolerated. Returns ErrMalformedIdentifier on any
// shape it does not recognize.
func ParseIdentifierPath(path string) (DocumentIdentifier, error) {
	trimmed := strings.Trim(path, "/")
	trimmed = strings.TrimPrefix(trimmed, "id/")
	parts := strings.Split(trimmed, "/")

	switch len(parts) {
	case 3:
		year, err := strconv.Atoi(parts[1])
		if err != nil {
			return DocumentIdentifier{}, fmt.Errorf("%w: bad year in %q", ErrMalformedIdentifier, path)
		}
		number, err := strconv.Atoi(parts[2])
		if err != nil {
			return DocumentIdentifier{}, fmt.Errorf("%w: bad number in %q", ErrMalformedIdentifier, path)
		}
		return DocumentIdentifier{
			Type:   DocType(parts[0]),
			Scheme: SchemeCalendar,
			Year:   year,
			Number: number,
		}, nil
	case 4:
		number, err := strconv.Atoi(parts[3])
		if err != nil {
			return DocumentIdentifier{}, fmt.Errorf("%w: bad number in %q", ErrMalformedIdentifier, path)
		}
		return DocumentIdentifier{
			Type:       DocType(parts[0]),
			Scheme:     SchemeRegnal,
			Monarch:    parts[1],
			RegnalYear: parts[2],
			Number:     number,
		}, nil
	default:
		return DocumentIdentifier{}, fmt.Errorf("%w: %q", ErrMalformedIdentifier, path)
	}
}

// Origin records whether raw content came from the network or the cache.
type Origin int

const (
	// OriginLive marks content fetched over the network.
	OriginLive Origin = iota + 1
	// OriginCache marks content served from the on-disk cache.
	OriginCache
)

// RawContent is the unparsed payload retrieved for one identifier.
// Produced by the fetch layer, consumed by the parser, not persisted
// beyond the cache.
type RawContent struct {
	URL       string
	Body      []byte
	MediaType string
	FetchedAt time.Time
	Origin    Origin
}

// RecordKind discriminates the addressable units emitted by the parser.
type RecordKind int

const (
	// KindDocument is a whole top-level document.
	KindDocument RecordKind = iota + 1
	// KindProvision is a single provision/section within a document.
	KindProvision
	// KindFallback marks a document that exists only as a scan.
	KindFallback
)

// Record is the closed set of deliverable record variants:
// ParsedDocument and FallbackMarker.
type Record interface {
	// RecordID returns the deterministic delivery ID.
	RecordID() ID
	// Identifier returns the source document identifier.
	Identifier() DocumentIdentifier
	// Kind discriminates the variant.
	Kind() RecordKind
	// EmbedText returns the text routed to the embedder,
	// or "" for records with no machine-readable body.
	EmbedText() string
}

// ParsedDocument is a typed record for one addressable unit of a
// source document: the whole document or a single provision.
type ParsedDocument struct {
	Ident DocumentIdentifier
	Unit  RecordKind // KindDocument or KindProvision

	Title string
	// Path is the structural hierarchy path of the unit within its
	// document, e.g. "part 2/section 12". Empty for the whole-document
	// record.
	Path string
	Text string

	// Optional metadata.
	EnactedOn time.Time // zero when the source omits it
	Extent    string    // territorial scope, e.g. "E+W+S+NI"
	Status    string    // e.g. "revised", "as enacted"

	SourceURL string
	Vector    []float32 // populated during delivery when embedding is enabled
}

var _ Record = (*ParsedDocument)(nil)

// RecordID derives the delivery ID from the identifier plus the unit
// path, so a document and each of its provisions upsert independently.
func (p *ParsedDocument) RecordID() ID {
	if p.Path == "" {
		return p.Ident.RecordID()
	}
	return IDFromContent(p.Ident.String() + "#" + p.Path)
}

// Identifier returns the source document identifier.
func (p *ParsedDocument) Identifier() DocumentIdentifier { return p.Ident }

// Kind returns the unit kind.
func (p *ParsedDocument) Kind() RecordKind { return p.Unit }

// EmbedText returns the text content routed to the embedder.
func (p *ParsedDocument) EmbedText() string { return p.Text }

// FallbackMarker records that a source document exists only as a
// non-machine-readable scan. It is a valid, non-error outcome and
// carries no body text.
type FallbackMarker struct {
	Ident     DocumentIdentifier
	Title     string
	PDFURL    string
	FetchedAt time.Time
}

var _ Record = (*FallbackMarker)(nil)

// RecordID returns the deterministic delivery ID.
func (f *FallbackMarker) RecordID() ID { return f.Ident.RecordID() }

// Identifier returns the source document identifier.
func (f *FallbackMarker) Identifier() DocumentIdentifier { return f.Ident }

// Kind returns KindFallback.
func (f *FallbackMarker) Kind() RecordKind { return KindFallback }

// EmbedText returns "" since scan-only documents carry no text.
func (f *FallbackMarker) EmbedText() string { return "" }

// CrossReference is a citation extracted from document text, kept as a
// secondary output stream so relationship data survives independently
// of prose formatting.
type CrossReference struct {
	From DocumentIdentifier
	// SourcePath is the structural path of the unit containing the
	// citation; empty when the citation appears at document level.
	SourcePath string
	// Citation is the citation text as it appears in the source.
	Citation string
	// TargetURI is the cited document URI when the markup provides one.
	TargetURI string
}

// Outcome classifies the terminal state of one identifier.
type Outcome int

const (
	// OutcomeDone means the document was parsed and delivered.
	OutcomeDone Outcome = iota + 1
	// OutcomeFallback means a scan-only marker was delivered.
	OutcomeFallback
	// OutcomeFailedPermanent means the identifier failed and will not
	// be retried without an explicit checkpoint reset.
	OutcomeFailedPermanent
	// OutcomeFailedRetryable means the identifier failed for reasons
	// unrelated to the document itself and is left for a future run.
	OutcomeFailedRetryable
)

// String returns the outcome label used in logs and summaries.
func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeFallback:
		return "fallback"
	case OutcomeFailedPermanent:
		return "failed-permanent"
	case OutcomeFailedRetryable:
		return "failed-retryable"
	default:
		return "unknown"
	}
}

// OutcomeRecord is one durable entry in a checkpoint's outcome log.
type OutcomeRecord struct {
	Ident   string // canonical identifier path
	Outcome Outcome
	Reason  string // failure reason, empty on success
	At      time.Time
}

// CheckpointMeta holds the per-(type, year) fields that are not part of
// the append-only outcome log.
type CheckpointMeta struct {
	// Candidates is the full candidate count produced by the resolver
	// for this combination, or 0 while enumeration has not finished.
	Candidates int
	// Cursor is the last identifier dispatched in resolver-yield order.
	Cursor    string
	UpdatedAt time.Time
}

// CheckpointRecord is the in-memory aggregate of one (type, year)
// combination's progress, assembled from the outcome log on load.
type CheckpointRecord struct {
	Type DocType
	Year int

	// Completed holds identifiers finished as done or fallback.
	Completed map[string]Outcome
	// Failed holds permanently failed identifiers with their reason.
	Failed map[string]string
	// Retryable holds identifiers whose last outcome was retryable;
	// they are attempted again on the next run.
	Retryable map[string]string

	Meta CheckpointMeta
}

// NewCheckpointRecord returns an empty record for a combination.
func NewCheckpointRecord(docType DocType, year int) *CheckpointRecord {
	return &CheckpointRecord{
		Type:      docType,
		Year:      year,
		Completed: make(map[string]Outcome),
		Failed:    make(map[string]string),
		Retryable: make(map[string]string),
	}
}

// Seen reports whether an identifier needs no further work:
// completed or permanently failed.
func (c *CheckpointRecord) Seen(ident string) bool {
	if _, ok := c.Completed[ident]; ok {
		return true
	}
	_, ok := c.Failed[ident]
	return ok
}

// IsComplete reports whether the combination is fully processed: the
// union of completed and permanently failed identifiers covers the full
// candidate set. Combinations with unfinished enumeration or
// outstanding retryable identifiers are never complete.
func (c *CheckpointRecord) IsComplete() bool {
	if c.Meta.Candidates == 0 {
		return false
	}
	if len(c.Retryable) > 0 {
		return false
	}
	return len(c.Completed)+len(c.Failed) >= c.Meta.Candidates
}

// Apply folds one outcome into the aggregate. A terminal outcome for an
// identifier supersedes an earlier retryable one, never the reverse.
func (c *CheckpointRecord) Apply(rec OutcomeRecord) {
	switch rec.Outcome {
	case OutcomeDone, OutcomeFallback:
		c.Completed[rec.Ident] = rec.Outcome
		delete(c.Retryable, rec.Ident)
	case OutcomeFailedPermanent:
		c.Failed[rec.Ident] = rec.Reason
		delete(c.Retryable, rec.Ident)
	case OutcomeFailedRetryable:
		if !c.Seen(rec.Ident) {
			c.Retryable[rec.Ident] = rec.Reason
		}
	}
	if rec.At.After(c.Meta.UpdatedAt) {
		c.Meta.UpdatedAt = rec.At
	}
}

// BatchUploadResult counts records newly inserted vs. already present
// in the downstream store. Used for operator-visible reporting only.
type BatchUploadResult struct {
	Inserted       int
	AlreadyPresent int
}

// Add accumulates another result into this one.
func (r *BatchUploadResult) Add(other *BatchUploadResult) {
	if other == nil {
		return
	}
	r.Inserted += other.Inserted
	r.AlreadyPresent += other.AlreadyPresent
}

// CachedResponse is one persisted fetch-cache entry.
type CachedResponse struct {
	URL       string
	Status    int
	MediaType string
	Body      []byte
	FetchedAt time.Time
}
