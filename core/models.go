package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ContentKind identifies the kind of content a capture holds.
// Each kind is bound to exactly one extractor via the extract registry.
type ContentKind int

const (
	// KindText is plain text submitted directly.
	KindText ContentKind = iota + 1
	// KindURL is a web page fetched and reduced to readable text.
	KindURL
	// KindPDF is a PDF document.
	KindPDF
	// KindImage is an image processed through OCR.
	KindImage
	// KindAudio is an audio recording processed through transcription.
	KindAudio
	// KindVideo is a video whose audio track is transcribed.
	KindVideo
	// KindDocument is an office-style document (docx, odt, ...).
	KindDocument
)

// String returns the wire/display name of the kind.
func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindURL:
		return "url"
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindDocument:
		return "document"
	default:
		return "text"
	}
}

// ParseContentKind maps a kind name to its ContentKind.
// Unknown names fall back to KindText.
func ParseContentKind(s string) ContentKind {
	switch s {
	case "url":
		return KindURL
	case "pdf":
		return KindPDF
	case "image":
		return KindImage
	case "audio":
		return KindAudio
	case "video":
		return KindVideo
	case "document":
		return KindDocument
	default:
		return KindText
	}
}

// CaptureStatus tracks a capture through the ingestion pipeline.
type CaptureStatus int

const (
	// StatusQueued means the capture is waiting for an ingestion worker.
	StatusQueued CaptureStatus = iota + 1
	// StatusProcessingDownload means extraction is in progress.
	StatusProcessingDownload
	// StatusProcessed means raw text has been extracted and persisted.
	StatusProcessed
	// StatusCompleted means chunking finished and downstream jobs were enqueued.
	StatusCompleted
	// StatusFailed is terminal; ErrorReason carries the cause.
	StatusFailed
)

// String returns the status name used in logs and CLI output.
func (s CaptureStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusProcessingDownload:
		return "processing_download"
	case StatusProcessed:
		return "processed"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Terminal reports whether the status permits no further pipeline transitions.
func (s CaptureStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Capture is one user-submitted content item before/after extraction.
// The ingestion pipeline mutates Status as it progresses; captures are
// never deleted by the pipeline.
type Capture struct {
	Id          ID
	OwnerId     ID
	Kind        ContentKind
	Title       string
	RawText     string // empty until extraction completes
	Summary     string // populated by the summarizer worker
	Status      CaptureStatus
	ErrorReason string
	Source      string // file key or URL
	ContextId   ID     // optional grouping; 0 means none
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EmbedStatus tracks whether a chunk's vector has been computed.
type EmbedStatus int

const (
	// EmbedPending means no vector has been computed yet.
	EmbedPending EmbedStatus = iota + 1
	// EmbedCompleted means the chunk carries a persisted vector.
	EmbedCompleted
)

// Chunk is a bounded text segment belonging to exactly one Capture.
// Content is immutable once created; metadata (topics, importance,
// embed status, vector) is updated by downstream workers.
type Chunk struct {
	Id            ID
	CaptureId     ID
	OwnerId       ID
	Seq           int
	Content       string
	TokenEstimate int
	Topics        []string
	Importance    int // 1-10, 0 means unset
	EmbedStatus   EmbedStatus
	Vector        []float32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanonicalChunk is the deduplicated representative of one or more
// near-duplicate chunks.
type CanonicalChunk struct {
	Id        ID
	OwnerId   ID
	Text      string
	Vector    []float32
	CreatedAt time.Time
}

// CanonicalLink maps a chunk to its canonical representative.
// Links are append-only; Similarity is provenance, not a ranking input.
type CanonicalLink struct {
	ChunkId     ID
	CanonicalId ID
	Similarity  float32
	CreatedAt   time.Time
}

// Concept is a named, deduplicated knowledge-graph node, unique per
// (owner, name). Re-extraction updates description and category in place.
type Concept struct {
	Id          ID
	OwnerId     ID
	Name        string
	Category    string
	Description string
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// Tuple returns the identity tuple used for content-based concept IDs.
func (c *Concept) Tuple() string {
	return ConceptTuple(c.OwnerId, c.Name)
}

// ConceptTuple builds the canonical identity string for a concept.
func ConceptTuple(owner ID, name string) string {
	return "(" + strconv.FormatUint(uint64(owner), 10) + "," + name + ")"
}

// ConceptRelation is a directed, typed edge between two concepts, unique
// per (source, target, relation). Duplicate upserts are no-ops.
type ConceptRelation struct {
	Id        ID
	OwnerId   ID
	SourceId  ID
	TargetId  ID
	Relation  string
	CreatedAt time.Time
}

// RelationTuple builds the canonical identity string for a relation.
func RelationTuple(source, target ID, relation string) string {
	return "(" + strconv.FormatUint(uint64(source), 10) + "," +
		strconv.FormatUint(uint64(target), 10) + "," + relation + ")"
}

// RecallStatus tracks a recall item through the spaced-repetition lifecycle.
type RecallStatus int

const (
	// RecallSuggested is a predictive candidate awaiting user promotion.
	RecallSuggested RecallStatus = iota + 1
	// RecallActive is reviewable and carries a MemoryStrength row.
	RecallActive
)

// String returns the status name.
func (s RecallStatus) String() string {
	switch s {
	case RecallSuggested:
		return "suggested"
	case RecallActive:
		return "active"
	default:
		return "unknown"
	}
}

// RecallItem is a spaced-repetition flashcard unit.
type RecallItem struct {
	Id         ID
	OwnerId    ID
	Question   string
	Answer     string
	SourceText string
	Status     RecallStatus
	ChunkId    ID   // optional source chunk; 0 means none
	ContextIds []ID // grounding chunks attached at activation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MemoryStrength is the per-item spaced-repetition scheduling state.
// Created at activation, mutated on every review submission.
type MemoryStrength struct {
	ItemId       ID
	OwnerId      ID
	Strength     float64
	IntervalDays float64
	NextReviewAt time.Time
	ReviewCount  int
	UpdatedAt    time.Time
}

// SimilarityMatch pairs a chunk ID with a similarity score.
type SimilarityMatch struct {
	ChunkId ID
	Score   float32
}

// SearchResult is a chunk returned from vector similarity search.
type SearchResult struct {
	Chunk *Chunk
	Score float32
}

// CanonicalSearchResult is a canonical chunk returned from similarity search.
type CanonicalSearchResult struct {
	Canonical *CanonicalChunk
	Score     float32
}

// RankedResult is a search result after reranking.
type RankedResult struct {
	Chunk      *Chunk
	Similarity float32
	Score      float64
}
