package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/noctua-systems/noctua/core"
)

// Key prefixes for different data types
const (
	capturePrefix     = "caprec"
	captureDatePrefix = "caprecd"
	captureIDSeq      = "caprecseq"

	chunkPrefix        = "chkrec"
	chunkDatePrefix    = "chkrecd"
	chunkCapturePrefix = "chkcap"
	chunkConceptPrefix = "chkcon"
	chunkContextPrefix = "chkctx"
	chunkIDSeq         = "chkrecseq"

	canonicalPrefix        = "canrec"
	canonicalLinkPrefix    = "canlnk"
	canonicalRevLinkPrefix = "canlnkr"
	canonicalIDSeq         = "canrecseq"

	conceptPrefix      = "conrec"
	conceptNamePrefix  = "connam"
	conceptOwnerPrefix = "conown"
	relationPrefix     = "relrec"
	relationSrcPrefix  = "relsrc"

	recallItemPrefix  = "recitm"
	recallOwnerPrefix = "recown"
	recallDuePrefix   = "recdue"
	recallItemIDSeq   = "recitmseq"
	strengthPrefix    = "recstr"
)

// makeRecordKey generates a primary key for a record by ID.
func makeRecordKey(prefix string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", prefix, id))
}

// appendUint64 writes an ID in BigEndian order so lexicographic sort
// works correctly.
func appendUint64(buf []byte, offset int, v uint64) int {
	binary.BigEndian.PutUint64(buf[offset:], v)
	return offset + 8
}

// makeIndexKey generates a composite index key.
// Format: prefix:part1:part2... with each part 8 BigEndian bytes.
func makeIndexKey(prefix string, parts ...uint64) []byte {
	prefixBytes := []byte(prefix + ":")
	buf := make([]byte, len(prefixBytes)+8*len(parts))
	offset := copy(buf, prefixBytes)
	for _, p := range parts {
		offset = appendUint64(buf, offset, p)
	}
	return buf
}

// makeCaptureDateKey generates a composite key for the capture date index.
// Format: prefix:owner:timestamp:id
func makeCaptureDateKey(owner core.ID, timestamp time.Time, id core.ID) []byte {
	return makeIndexKey(captureDatePrefix, uint64(owner), uint64(timestamp.UnixMicro()), uint64(id))
}

// makePartialCaptureDateKey generates a partial key for date range scans
// over one owner's captures.
func makePartialCaptureDateKey(owner core.ID, timestamp time.Time) []byte {
	return makeIndexKey(captureDatePrefix, uint64(owner), uint64(timestamp.UnixMicro()))
}

// makeChunkDateKey generates a composite key for the chunk date index.
// Format: prefix:owner:timestamp:id
func makeChunkDateKey(owner core.ID, timestamp time.Time, id core.ID) []byte {
	return makeIndexKey(chunkDatePrefix, uint64(owner), uint64(timestamp.UnixMicro()), uint64(id))
}

// makePartialChunkDateKey generates a partial key for date range scans
// over one owner's chunks.
func makePartialChunkDateKey(owner core.ID, timestamp time.Time) []byte {
	return makeIndexKey(chunkDatePrefix, uint64(owner), uint64(timestamp.UnixMicro()))
}

// makeChunkCaptureKey generates a composite key for the capture index.
// Format: prefix:captureID:chunkID
func makeChunkCaptureKey(captureID, chunkID core.ID) []byte {
	return makeIndexKey(chunkCapturePrefix, uint64(captureID), uint64(chunkID))
}

// makeChunkConceptKey generates a composite key for the concept index.
// Format: prefix:conceptID:chunkID
func makeChunkConceptKey(conceptID, chunkID core.ID) []byte {
	return makeIndexKey(chunkConceptPrefix, uint64(conceptID), uint64(chunkID))
}

// makeChunkContextKey generates a composite key for the context index.
// Format: prefix:contextID:chunkID
func makeChunkContextKey(contextID, chunkID core.ID) []byte {
	return makeIndexKey(chunkContextPrefix, uint64(contextID), uint64(chunkID))
}

// makeCanonicalLinkKey generates the key holding a chunk's canonical link.
func makeCanonicalLinkKey(chunkID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", canonicalLinkPrefix, chunkID))
}

// makeCanonicalRevLinkKey generates a composite key for the reverse link
// index. Format: prefix:canonicalID:chunkID
func makeCanonicalRevLinkKey(canonicalID, chunkID core.ID) []byte {
	return makeIndexKey(canonicalRevLinkPrefix, uint64(canonicalID), uint64(chunkID))
}

// makeConceptNameKey generates a composite key for concept lookup by
// (owner, name). Format: prefix:owner:name
func makeConceptNameKey(owner core.ID, name string) []byte {
	prefixBytes := []byte(conceptNamePrefix + ":")
	buf := make([]byte, len(prefixBytes)+8+len(name))
	offset := copy(buf, prefixBytes)
	offset = appendUint64(buf, offset, uint64(owner))
	copy(buf[offset:], []byte(name))
	return buf
}

// makeConceptOwnerKey generates a composite key for the concept owner index.
// Format: prefix:owner:conceptID
func makeConceptOwnerKey(owner, conceptID core.ID) []byte {
	return makeIndexKey(conceptOwnerPrefix, uint64(owner), uint64(conceptID))
}

// makeRelationSrcKey generates a composite key for the relation source
// index. Format: prefix:sourceID:relationID
func makeRelationSrcKey(sourceID, relationID core.ID) []byte {
	return makeIndexKey(relationSrcPrefix, uint64(sourceID), uint64(relationID))
}

// makeRecallOwnerKey generates a composite key for the recall owner index.
// Format: prefix:owner:itemID
func makeRecallOwnerKey(owner, itemID core.ID) []byte {
	return makeIndexKey(recallOwnerPrefix, uint64(owner), uint64(itemID))
}

// makeRecallDueKey generates a composite key for the due-time index.
// Format: prefix:owner:nextReview:itemID
func makeRecallDueKey(owner core.ID, nextReview time.Time, itemID core.ID) []byte {
	return makeIndexKey(recallDuePrefix, uint64(owner), uint64(nextReview.UnixMicro()), uint64(itemID))
}

// makePartialRecallDueKey generates a partial key for due-time scans.
func makePartialRecallDueKey(owner core.ID, nextReview time.Time) []byte {
	return makeIndexKey(recallDuePrefix, uint64(owner), uint64(nextReview.UnixMicro()))
}

// makeStrengthKey generates the key holding an item's scheduling state.
func makeStrengthKey(itemID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", strengthPrefix, itemID))
}
