package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

const (
	// AllAttributes is the pseudo attribute name that searches across every
	// stored attribute. It can never be stored.
	AllAttributes = "all"

	// EntireProfileAttribute is the synthetic attribute holding the embedding
	// of a whole profile rendered as "name: value" lines.
	EntireProfileAttribute = "entire_profile"
)

// ID is a stable 64-bit key derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// VectorID returns the storage key of the (subject, attribute) pair.
// NUL cannot appear in either part, so the joined form is unambiguous.
func VectorID(subjectID, attributeName string) ID {
	return IDFromContent(subjectID + "\x00" + attributeName)
}

// AttributeVector is one embedding of one named text attribute of one subject.
// There is at most one per (SubjectID, AttributeName).
type AttributeVector struct {
	SubjectID     string
	AttributeName string
	Vector        []float32
	CreatedAt     time.Time // First time the pair was stored
	UpdatedAt     time.Time // Last upsert
}

// ID returns the storage key of the vector.
func (v *AttributeVector) ID() ID {
	return VectorID(v.SubjectID, v.AttributeName)
}

// SearchCriteria maps attribute names to free text supplied for one search.
type SearchCriteria map[string]string

// Neighbor is a single k-nearest-neighbor hit.
type Neighbor struct {
	SubjectID     string
	AttributeName string  // Stored attribute that produced the hit
	Distance      float32 // Cosine distance, lower is nearer
}

// RankedList is one k-NN result list, nearest first, labelled with the
// attribute it was searched for.
type RankedList struct {
	Attribute string
	Neighbors []Neighbor
}

// MatchResult is a single aggregated match. Lower Score is better.
type MatchResult struct {
	SubjectID              string   `json:"subject_id"`
	Score                  int      `json:"score"`
	ContributingAttributes []string `json:"contributing_attributes"`
}

// Profile is the free-text description of one subject, keyed by attribute name.
type Profile struct {
	SubjectID string            `yaml:"subject_id" json:"subject_id"`
	Fields    map[string]string `yaml:"fields" json:"fields"`
}
