package badger

import (
	"encoding/binary"

	"github.com/corvid-labs/sectra/core"
)

// Key prefixes for different data types. Composite keys encode ids and
// ordinals in BigEndian so lexicographic iteration matches numeric order.
const (
	sourcePrefix       = "src"
	sourceKeyPrefix    = "srckey"
	sourceRecentPrefix = "srcrec"
	sectionPrefix      = "sect"
	entityPrefix       = "ent"
	entitySourcePrefix = "entsrc"
	entitySectPrefix   = "entsec"
	entityCanonPrefix  = "entcan"
	relPrefix          = "rel"
	relSourcePrefix    = "relsrc"
	relSubjectPrefix   = "relsub"
	relObjectPrefix    = "relobj"
	aliasPrefix        = "alias"
	aliasUsagePrefix   = "aliasuse"
	postingPrefix      = "lex"
	postingListPrefix  = "lexsrc"
	metaDimensionKey   = "meta:dim"
	metaCountKey       = "meta:count"
)

// appendBE appends one or more ids in BigEndian order.
func appendBE(buf []byte, ids ...uint64) []byte {
	for _, id := range ids {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], id)
		buf = append(buf, b[:]...)
	}
	return buf
}

func compositeKey(prefix string, ids ...uint64) []byte {
	buf := make([]byte, 0, len(prefix)+1+8*len(ids))
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	return appendBE(buf, ids...)
}

func makeSourceKey(id core.ID) []byte {
	return compositeKey(sourcePrefix, uint64(id))
}

func makeSourceLookupKey(key string) []byte {
	return []byte(sourceKeyPrefix + ":" + key)
}

// makeSourceRecentKey indexes sources by ingestion time for recency scans.
// Format: prefix:timestamp:id
func makeSourceRecentKey(unixMicro int64, id core.ID) []byte {
	return compositeKey(sourceRecentPrefix, uint64(unixMicro), uint64(id))
}

// makeSectionKey keys a section under its source. Section ids are 1-based
// document ordinals, so a prefix scan yields document order.
// Format: prefix:sourceID:sectionID
func makeSectionKey(sourceID, sectionID core.ID) []byte {
	return compositeKey(sectionPrefix, uint64(sourceID), uint64(sectionID))
}

func makeSectionScanPrefix(sourceID core.ID) []byte {
	return compositeKey(sectionPrefix, uint64(sourceID))
}

func makeEntityKey(id core.ID) []byte {
	return compositeKey(entityPrefix, uint64(id))
}

// makeEntitySourceKey indexes entities by source and batch position.
// Format: prefix:sourceID:seq
func makeEntitySourceKey(sourceID core.ID, seq int) []byte {
	return compositeKey(entitySourcePrefix, uint64(sourceID), uint64(seq))
}

func makeEntitySourceScanPrefix(sourceID core.ID) []byte {
	return compositeKey(entitySourcePrefix, uint64(sourceID))
}

// makeEntitySectionKey indexes entities by source, section and batch position.
// Format: prefix:sourceID:sectionID:seq
func makeEntitySectionKey(sourceID, sectionID core.ID, seq int) []byte {
	return compositeKey(entitySectPrefix, uint64(sourceID), uint64(sectionID), uint64(seq))
}

func makeEntitySectionScanPrefix(sourceID, sectionID core.ID) []byte {
	return compositeKey(entitySectPrefix, uint64(sourceID), uint64(sectionID))
}

// makeEntityCanonicalKey indexes entities by alias cluster.
// Format: prefix:canonicalID:entityID
func makeEntityCanonicalKey(canonicalID, entityID core.ID) []byte {
	return compositeKey(entityCanonPrefix, uint64(canonicalID), uint64(entityID))
}

func makeEntityCanonicalScanPrefix(canonicalID core.ID) []byte {
	return compositeKey(entityCanonPrefix, uint64(canonicalID))
}

func makeRelationshipKey(id core.ID) []byte {
	return compositeKey(relPrefix, uint64(id))
}

// Format: prefix:sourceID:seq
func makeRelationshipSourceKey(sourceID core.ID, seq int) []byte {
	return compositeKey(relSourcePrefix, uint64(sourceID), uint64(seq))
}

func makeRelationshipSourceScanPrefix(sourceID core.ID) []byte {
	return compositeKey(relSourcePrefix, uint64(sourceID))
}

// Format: prefix:subjectID:relationshipID
func makeRelationshipSubjectKey(subjectID, relID core.ID) []byte {
	return compositeKey(relSubjectPrefix, uint64(subjectID), uint64(relID))
}

func makeRelationshipSubjectScanPrefix(subjectID core.ID) []byte {
	return compositeKey(relSubjectPrefix, uint64(subjectID))
}

// Format: prefix:objectID:relationshipID
func makeRelationshipObjectKey(objectID, relID core.ID) []byte {
	return compositeKey(relObjectPrefix, uint64(objectID), uint64(relID))
}

func makeRelationshipObjectScanPrefix(objectID core.ID) []byte {
	return compositeKey(relObjectPrefix, uint64(objectID))
}

func makeAliasKey(id core.ID) []byte {
	return compositeKey(aliasPrefix, uint64(id))
}

func makeAliasUsageKey(sourceID core.ID) []byte {
	return compositeKey(aliasUsagePrefix, uint64(sourceID))
}

// makePostingKey keys one lexical posting. The term is raw in the key; terms
// are runs of lowercase letters and digits and never contain ':', so the
// separator is unambiguous and the value after it is a fixed 9-byte suffix.
// Format: prefix:term:kind:recordID
func makePostingKey(term string, kind core.ResultKind, id core.ID) []byte {
	buf := make([]byte, 0, len(postingPrefix)+len(term)+2+1+8)
	buf = append(buf, postingPrefix...)
	buf = append(buf, ':')
	buf = append(buf, term...)
	buf = append(buf, ':')
	buf = append(buf, byte(kind))
	return appendBE(buf, uint64(id))
}

func makePostingScanPrefix(term string) []byte {
	return []byte(postingPrefix + ":" + term + ":")
}

func makePostingListKey(sourceID core.ID) []byte {
	return compositeKey(postingListPrefix, uint64(sourceID))
}
