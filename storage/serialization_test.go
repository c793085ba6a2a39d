package storage

import (
	"testing"
	"time"

	"github.com/noctua-systems/noctua/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalCapture(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name    string
		capture *core.Capture
	}{
		{
			name: "minimal capture",
			capture: &core.Capture{
				Id:        core.ID(1),
				OwnerId:   core.ID(7),
				Kind:      core.KindText,
				Title:     "A note",
				Status:    core.StatusQueued,
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		{
			name: "processed capture with text",
			capture: &core.Capture{
				Id:        core.ID(2),
				OwnerId:   core.ID(7),
				Kind:      core.KindURL,
				Title:     "An article",
				RawText:   "Extracted readable text of the article.",
				Summary:   "Short summary.",
				Status:    core.StatusProcessed,
				Source:    "https://example.com/article",
				ContextId: core.ID(99),
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		{
			name: "failed capture with reason",
			capture: &core.Capture{
				Id:          core.ID(3),
				OwnerId:     core.ID(7),
				Kind:        core.KindPDF,
				Status:      core.StatusFailed,
				ErrorReason: "extraction produced no text",
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		},
		{
			name: "unicode content",
			capture: &core.Capture{
				Id:        core.ID(4),
				OwnerId:   core.ID(7),
				Kind:      core.KindText,
				Title:     "世界 🌍 étude",
				RawText:   "Hello 世界",
				Status:    core.StatusCompleted,
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalCapture(tt.capture)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalCapture(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.capture.Id, decoded.Id)
			assert.Equal(t, tt.capture.OwnerId, decoded.OwnerId)
			assert.Equal(t, tt.capture.Kind, decoded.Kind)
			assert.Equal(t, tt.capture.Title, decoded.Title)
			assert.Equal(t, tt.capture.RawText, decoded.RawText)
			assert.Equal(t, tt.capture.Summary, decoded.Summary)
			assert.Equal(t, tt.capture.Status, decoded.Status)
			assert.Equal(t, tt.capture.ErrorReason, decoded.ErrorReason)
			assert.Equal(t, tt.capture.Source, decoded.Source)
			assert.Equal(t, tt.capture.ContextId, decoded.ContextId)
			assert.True(t, tt.capture.CreatedAt.Equal(decoded.CreatedAt))
			assert.True(t, tt.capture.UpdatedAt.Equal(decoded.UpdatedAt))
		})
	}
}

func TestUnmarshalCapture_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCapture(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name  string
		chunk *core.Chunk
	}{
		{
			name: "pending chunk",
			chunk: &core.Chunk{
				Id:            core.ID(1),
				CaptureId:     core.ID(10),
				OwnerId:       core.ID(7),
				Seq:           0,
				Content:       "First segment of the capture.",
				TokenEstimate: 8,
				EmbedStatus:   core.EmbedPending,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
		},
		{
			name: "embedded chunk with metadata",
			chunk: &core.Chunk{
				Id:            core.ID(2),
				CaptureId:     core.ID(10),
				OwnerId:       core.ID(7),
				Seq:           1,
				Content:       "Second segment with topics.",
				TokenEstimate: 6,
				Topics:        []string{"scheduling", "meetings"},
				Importance:    8,
				EmbedStatus:   core.EmbedCompleted,
				Vector:        []float32{0.1, 0.2, 0.3, 0.4, 0.5},
				CreatedAt:     now,
				UpdatedAt:     now,
			},
		},
		{
			name: "chunk with long vector",
			chunk: &core.Chunk{
				Id:          core.ID(3),
				CaptureId:   core.ID(10),
				OwnerId:     core.ID(7),
				Content:     "Vector-heavy chunk",
				EmbedStatus: core.EmbedCompleted,
				Vector:      make([]float32, 768),
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalChunk(tt.chunk)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalChunk(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.chunk.Id, decoded.Id)
			assert.Equal(t, tt.chunk.CaptureId, decoded.CaptureId)
			assert.Equal(t, tt.chunk.OwnerId, decoded.OwnerId)
			assert.Equal(t, tt.chunk.Seq, decoded.Seq)
			assert.Equal(t, tt.chunk.Content, decoded.Content)
			assert.Equal(t, tt.chunk.TokenEstimate, decoded.TokenEstimate)
			assert.Equal(t, tt.chunk.Importance, decoded.Importance)
			assert.Equal(t, tt.chunk.EmbedStatus, decoded.EmbedStatus)
			if len(tt.chunk.Topics) == 0 {
				assert.Empty(t, decoded.Topics)
			} else {
				assert.Equal(t, tt.chunk.Topics, decoded.Topics)
			}
			if len(tt.chunk.Vector) == 0 {
				assert.Empty(t, decoded.Vector)
			} else {
				assert.Equal(t, tt.chunk.Vector, decoded.Vector)
			}
		})
	}
}

func TestMarshalUnmarshalCanonical(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	canonical := &core.CanonicalChunk{
		Id:        core.ID(5),
		OwnerId:   core.ID(7),
		Text:      "The team meets Mondays at 10 AM.",
		Vector:    []float32{0.5, 0.5, 0.5},
		CreatedAt: now,
	}
	data := MarshalCanonicalChunk(canonical)
	decodedCanonical, err := UnmarshalCanonicalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, canonical.Id, decodedCanonical.Id)
	assert.Equal(t, canonical.OwnerId, decodedCanonical.OwnerId)
	assert.Equal(t, canonical.Text, decodedCanonical.Text)
	assert.Equal(t, canonical.Vector, decodedCanonical.Vector)
	assert.True(t, canonical.CreatedAt.Equal(decodedCanonical.CreatedAt))

	link := &core.CanonicalLink{
		ChunkId:     core.ID(2),
		CanonicalId: core.ID(5),
		Similarity:  0.91,
		CreatedAt:   now,
	}
	data = MarshalCanonicalLink(link)
	decodedLink, err := UnmarshalCanonicalLink(data)
	require.NoError(t, err)
	assert.Equal(t, link.ChunkId, decodedLink.ChunkId)
	assert.Equal(t, link.CanonicalId, decodedLink.CanonicalId)
	assert.Equal(t, link.Similarity, decodedLink.Similarity)
	assert.True(t, link.CreatedAt.Equal(decodedLink.CreatedAt))
}

func TestMarshalUnmarshalConcept(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name    string
		concept *core.Concept
	}{
		{
			name: "minimal concept",
			concept: &core.Concept{
				Id:         core.IDFromContent(core.ConceptTuple(7, "badgerdb")),
				OwnerId:    core.ID(7),
				Name:       "badgerdb",
				Category:   "technology",
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "concept with description",
			concept: &core.Concept{
				Id:          core.IDFromContent(core.ConceptTuple(7, "weekly sync")),
				OwnerId:     core.ID(7),
				Name:        "weekly sync",
				Category:    "event",
				Description: "Recurring team meeting on Mondays.",
				InsertedAt:  now,
				UpdatedAt:   now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalConcept(tt.concept)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalConcept(data)
			require.NoError(t, err)
			assert.Equal(t, tt.concept.Id, decoded.Id)
			assert.Equal(t, tt.concept.OwnerId, decoded.OwnerId)
			assert.Equal(t, tt.concept.Name, decoded.Name)
			assert.Equal(t, tt.concept.Category, decoded.Category)
			assert.Equal(t, tt.concept.Description, decoded.Description)
		})
	}
}

func TestMarshalUnmarshalConceptRelation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	relation := &core.ConceptRelation{
		Id:        core.IDFromContent(core.RelationTuple(1, 2, "uses")),
		OwnerId:   core.ID(7),
		SourceId:  core.ID(1),
		TargetId:  core.ID(2),
		Relation:  "uses",
		CreatedAt: now,
	}

	data := MarshalConceptRelation(relation)
	decoded, err := UnmarshalConceptRelation(data)
	require.NoError(t, err)
	assert.Equal(t, relation.Id, decoded.Id)
	assert.Equal(t, relation.SourceId, decoded.SourceId)
	assert.Equal(t, relation.TargetId, decoded.TargetId)
	assert.Equal(t, relation.Relation, decoded.Relation)
}

func TestMarshalUnmarshalRecall(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	item := &core.RecallItem{
		Id:         core.ID(11),
		OwnerId:    core.ID(7),
		Question:   "When does the team meet?",
		Answer:     "Mondays at 10 AM.",
		SourceText: "The team meets Mondays at 10 AM.",
		Status:     core.RecallActive,
		ChunkId:    core.ID(2),
		ContextIds: []core.ID{3, 4, 5},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	data := MarshalRecallItem(item)
	decodedItem, err := UnmarshalRecallItem(data)
	require.NoError(t, err)
	assert.Equal(t, item.Id, decodedItem.Id)
	assert.Equal(t, item.Question, decodedItem.Question)
	assert.Equal(t, item.Answer, decodedItem.Answer)
	assert.Equal(t, item.Status, decodedItem.Status)
	assert.Equal(t, item.ContextIds, decodedItem.ContextIds)

	strength := &core.MemoryStrength{
		ItemId:       core.ID(11),
		OwnerId:      core.ID(7),
		Strength:     1.25,
		IntervalDays: 3,
		NextReviewAt: now.Add(72 * time.Hour),
		ReviewCount:  2,
		UpdatedAt:    now,
	}
	data = MarshalMemoryStrength(strength)
	decodedStrength, err := UnmarshalMemoryStrength(data)
	require.NoError(t, err)
	assert.Equal(t, strength.ItemId, decodedStrength.ItemId)
	assert.Equal(t, strength.OwnerId, decodedStrength.OwnerId)
	assert.Equal(t, strength.Strength, decodedStrength.Strength)
	assert.Equal(t, strength.IntervalDays, decodedStrength.IntervalDays)
	assert.True(t, strength.NextReviewAt.Equal(decodedStrength.NextReviewAt))
	assert.Equal(t, strength.ReviewCount, decodedStrength.ReviewCount)
}

func TestRoundTripConsistency(t *testing.T) {
	t.Run("multiple marshal-unmarshal cycles", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		original := &core.Chunk{
			Id:            core.ID(999),
			CaptureId:     core.ID(100),
			OwnerId:       core.ID(7),
			Seq:           3,
			Content:       "Testing consistency",
			TokenEstimate: 4,
			Topics:        []string{"testing"},
			Importance:    5,
			EmbedStatus:   core.EmbedCompleted,
			Vector:        []float32{0.1, 0.2, 0.3},
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		current := original
		for i := 0; i < 3; i++ {
			data := MarshalChunk(current)
			decoded, err := UnmarshalChunk(data)
			require.NoError(t, err)
			current = decoded
		}

		assert.Equal(t, original.Id, current.Id)
		assert.Equal(t, original.Content, current.Content)
		assert.Equal(t, original.Topics, current.Topics)
		assert.Equal(t, original.Vector, current.Vector)
		assert.True(t, original.CreatedAt.Equal(current.CreatedAt))
	})
}
