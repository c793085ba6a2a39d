package storage

import (
	"github.com/noctua-systems/noctua/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalCapture serializes a Capture to bytes.
func MarshalCapture(capture *core.Capture) []byte {
	buf := make([]byte, core.CaptureMUS.Size(*capture))
	core.CaptureMUS.Marshal(*capture, buf)
	return buf
}

// UnmarshalCapture deserializes a Capture from bytes.
func UnmarshalCapture(data []byte) (*core.Capture, error) {
	capture, _, err := core.CaptureMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &capture, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := core.ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// MarshalCanonicalChunk serializes a CanonicalChunk to bytes.
func MarshalCanonicalChunk(canonical *core.CanonicalChunk) []byte {
	buf := make([]byte, core.CanonicalChunkMUS.Size(*canonical))
	core.CanonicalChunkMUS.Marshal(*canonical, buf)
	return buf
}

// UnmarshalCanonicalChunk deserializes a CanonicalChunk from bytes.
func UnmarshalCanonicalChunk(data []byte) (*core.CanonicalChunk, error) {
	canonical, _, err := core.CanonicalChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &canonical, nil
}

// MarshalCanonicalLink serializes a CanonicalLink to bytes.
func MarshalCanonicalLink(link *core.CanonicalLink) []byte {
	buf := make([]byte, core.CanonicalLinkMUS.Size(*link))
	core.CanonicalLinkMUS.Marshal(*link, buf)
	return buf
}

// UnmarshalCanonicalLink deserializes a CanonicalLink from bytes.
func UnmarshalCanonicalLink(data []byte) (*core.CanonicalLink, error) {
	link, _, err := core.CanonicalLinkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// MarshalConcept serializes a Concept to bytes.
func MarshalConcept(concept *core.Concept) []byte {
	buf := make([]byte, core.ConceptMUS.Size(*concept))
	core.ConceptMUS.Marshal(*concept, buf)
	return buf
}

// UnmarshalConcept deserializes a Concept from bytes.
func UnmarshalConcept(data []byte) (*core.Concept, error) {
	concept, _, err := core.ConceptMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &concept, nil
}

// MarshalConceptRelation serializes a ConceptRelation to bytes.
func MarshalConceptRelation(relation *core.ConceptRelation) []byte {
	buf := make([]byte, core.ConceptRelationMUS.Size(*relation))
	core.ConceptRelationMUS.Marshal(*relation, buf)
	return buf
}

// UnmarshalConceptRelation deserializes a ConceptRelation from bytes.
func UnmarshalConceptRelation(data []byte) (*core.ConceptRelation, error) {
	relation, _, err := core.ConceptRelationMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &relation, nil
}

// MarshalRecallItem serializes a RecallItem to bytes.
func MarshalRecallItem(item *core.RecallItem) []byte {
	buf := make([]byte, core.RecallItemMUS.Size(*item))
	core.RecallItemMUS.Marshal(*item, buf)
	return buf
}

// UnmarshalRecallItem deserializes a RecallItem from bytes.
func UnmarshalRecallItem(data []byte) (*core.RecallItem, error) {
	item, _, err := core.RecallItemMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// MarshalMemoryStrength serializes a MemoryStrength to bytes.
func MarshalMemoryStrength(strength *core.MemoryStrength) []byte {
	buf := make([]byte, core.MemoryStrengthMUS.Size(*strength))
	core.MemoryStrengthMUS.Marshal(*strength, buf)
	return buf
}

// UnmarshalMemoryStrength deserializes a MemoryStrength from bytes.
func UnmarshalMemoryStrength(data []byte) (*core.MemoryStrength, error) {
	strength, _, err := core.MemoryStrengthMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &strength, nil
}
