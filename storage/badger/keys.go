package badger

import (
	"bytes"
	"encoding/binary"

	"github.com/poiesic/mentormatch/core"
)

// Key prefixes for different data types
const (
	vectorRecordPrefix   = "attrvec:"
	attributeIndexPrefix = "attridx:"
	subjectIndexPrefix   = "subjidx:"
	keySeparator         = 0x00
)

// makeVectorKey generates the primary key of an attribute vector.
// Format: prefix + BigEndian(id)
func makeVectorKey(id core.ID) []byte {
	buf := make([]byte, len(vectorRecordPrefix)+8)
	offset := copy(buf, vectorRecordPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeAttributeIndexKey generates a key in the attribute index.
// Format: prefix + attribute + NUL + BigEndian(id)
func makeAttributeIndexKey(attributeName string, id core.ID) []byte {
	prefix := makePartialAttributeIndexKey(attributeName)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialAttributeIndexKey generates the scan prefix for one attribute.
// The trailing separator keeps "bio" from matching "biography".
func makePartialAttributeIndexKey(attributeName string) []byte {
	buf := make([]byte, 0, len(attributeIndexPrefix)+len(attributeName)+1)
	buf = append(buf, attributeIndexPrefix...)
	buf = append(buf, attributeName...)
	return append(buf, keySeparator)
}

// makeSubjectIndexKey generates a key in the subject index.
// Format: prefix + subject + NUL + attribute
func makeSubjectIndexKey(subjectID, attributeName string) []byte {
	prefix := makePartialSubjectIndexKey(subjectID)
	buf := make([]byte, 0, len(prefix)+len(attributeName))
	buf = append(buf, prefix...)
	return append(buf, attributeName...)
}

// makePartialSubjectIndexKey generates the scan prefix for one subject.
func makePartialSubjectIndexKey(subjectID string) []byte {
	buf := make([]byte, 0, len(subjectIndexPrefix)+len(subjectID)+1)
	buf = append(buf, subjectIndexPrefix...)
	buf = append(buf, subjectID...)
	return append(buf, keySeparator)
}

// attributeFromIndexKey extracts the attribute name from an attribute index key.
func attributeFromIndexKey(key []byte) (string, bool) {
	rest := key[len(attributeIndexPrefix):]
	sep := bytes.IndexByte(rest, keySeparator)
	if sep < 0 {
		return "", false
	}
	return string(rest[:sep]), true
}

// vectorKeyFromIndexKey converts an attribute index key to the primary key it references.
func vectorKeyFromIndexKey(key []byte) []byte {
	if len(key) < 8 {
		return nil
	}
	id := core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
	return makeVectorKey(id)
}
