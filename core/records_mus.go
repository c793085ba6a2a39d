package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persistent record types. Field order is part of
// the storage format; append new fields at the end.
var (
	IDMUS              = idMUS{}
	CaptureMUS         = captureMUS{}
	ChunkMUS           = chunkMUS{}
	CanonicalChunkMUS  = canonicalChunkMUS{}
	CanonicalLinkMUS   = canonicalLinkMUS{}
	ConceptMUS         = conceptMUS{}
	ConceptRelationMUS = conceptRelationMUS{}
	RecallItemMUS      = recallItemMUS{}
	MemoryStrengthMUS  = memoryStrengthMUS{}
)

var (
	vectorMUS = ord.NewSliceSer[float32](raw.Float32)
	topicsMUS = ord.NewSliceSer[string](ord.String)
	idsMUS    = ord.NewSliceSer[ID](IDMUS)
)

var _ mus.Serializer[ID] = IDMUS

// Timestamps are stored as Unix micro, matching key encoding precision.

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

func skipTime(bs []byte) (int, error) {
	return varint.Int64.Skip(bs)
}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type captureMUS struct{}

func (captureMUS) Marshal(v Capture, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += varint.Int.Marshal(int(v.Kind), bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.RawText, bs[n:])
	n += ord.String.Marshal(v.Summary, bs[n:])
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += ord.String.Marshal(v.ErrorReason, bs[n:])
	n += ord.String.Marshal(v.Source, bs[n:])
	n += IDMUS.Marshal(v.ContextId, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (captureMUS) Unmarshal(bs []byte) (v Capture, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var kind int
	kind, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Kind = ContentKind(kind)
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RawText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Summary, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status int
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = CaptureStatus(status)
	v.ErrorReason, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContextId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (captureMUS) Size(v Capture) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.OwnerId)
	size += varint.Int.Size(int(v.Kind))
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.RawText)
	size += ord.String.Size(v.Summary)
	size += varint.Int.Size(int(v.Status))
	size += ord.String.Size(v.ErrorReason)
	size += ord.String.Size(v.Source)
	size += IDMUS.Size(v.ContextId)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

type chunkMUS struct{}

func (chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.CaptureId, bs[n:])
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += varint.Int.Marshal(v.Seq, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int.Marshal(v.TokenEstimate, bs[n:])
	n += topicsMUS.Marshal(v.Topics, bs[n:])
	n += varint.Int.Marshal(v.Importance, bs[n:])
	n += varint.Int.Marshal(int(v.EmbedStatus), bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.CaptureId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Seq, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TokenEstimate, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Topics, n1, err = topicsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Importance, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var embedStatus int
	embedStatus, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.EmbedStatus = EmbedStatus(embedStatus)
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (chunkMUS) Size(v Chunk) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.CaptureId)
	size += IDMUS.Size(v.OwnerId)
	size += varint.Int.Size(v.Seq)
	size += ord.String.Size(v.Content)
	size += varint.Int.Size(v.TokenEstimate)
	size += topicsMUS.Size(v.Topics)
	size += varint.Int.Size(v.Importance)
	size += varint.Int.Size(int(v.EmbedStatus))
	size += vectorMUS.Size(v.Vector)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

type canonicalChunkMUS struct{}

func (canonicalChunkMUS) Marshal(v CanonicalChunk, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (canonicalChunkMUS) Unmarshal(bs []byte) (v CanonicalChunk, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (canonicalChunkMUS) Size(v CanonicalChunk) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.OwnerId)
	size += ord.String.Size(v.Text)
	size += vectorMUS.Size(v.Vector)
	size += sizeTime(v.CreatedAt)
	return size
}

type canonicalLinkMUS struct{}

func (canonicalLinkMUS) Marshal(v CanonicalLink, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ChunkId, bs)
	n += IDMUS.Marshal(v.CanonicalId, bs[n:])
	n += raw.Float32.Marshal(v.Similarity, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (canonicalLinkMUS) Unmarshal(bs []byte) (v CanonicalLink, n int, err error) {
	var n1 int
	v.ChunkId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.CanonicalId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Similarity, n1, err = raw.Float32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (canonicalLinkMUS) Size(v CanonicalLink) (size int) {
	size = IDMUS.Size(v.ChunkId)
	size += IDMUS.Size(v.CanonicalId)
	size += raw.Float32.Size(v.Similarity)
	size += sizeTime(v.CreatedAt)
	return size
}

type conceptMUS struct{}

func (conceptMUS) Marshal(v Concept, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (conceptMUS) Unmarshal(bs []byte) (v Concept, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Category, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Description, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (conceptMUS) Size(v Concept) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.OwnerId)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.Category)
	size += ord.String.Size(v.Description)
	size += sizeTime(v.InsertedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

type conceptRelationMUS struct{}

func (conceptRelationMUS) Marshal(v ConceptRelation, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += IDMUS.Marshal(v.SourceId, bs[n:])
	n += IDMUS.Marshal(v.TargetId, bs[n:])
	n += ord.String.Marshal(v.Relation, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	return n
}

func (conceptRelationMUS) Unmarshal(bs []byte) (v ConceptRelation, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TargetId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Relation, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (conceptRelationMUS) Size(v ConceptRelation) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.OwnerId)
	size += IDMUS.Size(v.SourceId)
	size += IDMUS.Size(v.TargetId)
	size += ord.String.Size(v.Relation)
	size += sizeTime(v.CreatedAt)
	return size
}

type recallItemMUS struct{}

func (recallItemMUS) Marshal(v RecallItem, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += ord.String.Marshal(v.Question, bs[n:])
	n += ord.String.Marshal(v.Answer, bs[n:])
	n += ord.String.Marshal(v.SourceText, bs[n:])
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += IDMUS.Marshal(v.ChunkId, bs[n:])
	n += idsMUS.Marshal(v.ContextIds, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (recallItemMUS) Unmarshal(bs []byte) (v RecallItem, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Question, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Answer, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status int
	status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = RecallStatus(status)
	v.ChunkId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContextIds, n1, err = idsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (recallItemMUS) Size(v RecallItem) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.OwnerId)
	size += ord.String.Size(v.Question)
	size += ord.String.Size(v.Answer)
	size += ord.String.Size(v.SourceText)
	size += varint.Int.Size(int(v.Status))
	size += IDMUS.Size(v.ChunkId)
	size += idsMUS.Size(v.ContextIds)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

type memoryStrengthMUS struct{}

func (memoryStrengthMUS) Marshal(v MemoryStrength, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ItemId, bs)
	n += IDMUS.Marshal(v.OwnerId, bs[n:])
	n += raw.Float64.Marshal(v.Strength, bs[n:])
	n += raw.Float64.Marshal(v.IntervalDays, bs[n:])
	n += marshalTime(v.NextReviewAt, bs[n:])
	n += varint.Int.Marshal(v.ReviewCount, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (memoryStrengthMUS) Unmarshal(bs []byte) (v MemoryStrength, n int, err error) {
	var n1 int
	v.ItemId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.OwnerId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Strength, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.IntervalDays, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.NextReviewAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ReviewCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	return
}

func (memoryStrengthMUS) Size(v MemoryStrength) (size int) {
	size = IDMUS.Size(v.ItemId)
	size += IDMUS.Size(v.OwnerId)
	size += raw.Float64.Size(v.Strength)
	size += raw.Float64.Size(v.IntervalDays)
	size += sizeTime(v.NextReviewAt)
	size += varint.Int.Size(v.ReviewCount)
	size += sizeTime(v.UpdatedAt)
	return size
}
