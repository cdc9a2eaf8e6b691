package models

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Word is one normalized lemma of a land's dictionary, with the original
// keywords it was derived from. (land_id, lemma, language) is unique via the
// derived id.
type Word struct {
	ID       string    `json:"id"`
	LandID   string    `json:"land_id" badgerhold:"index"`
	Lemma    string    `json:"lemma"`
	Language string    `json:"language"`
	Keywords []string  `json:"keywords"`
	CreatedAt time.Time `json:"created_at"`
}

// WordID derives the storage key for a lemma entry.
func WordID(landID, lemma, language string) string {
	sum := sha1.Sum([]byte(landID + "\n" + lemma + "\n" + language))
	return "word_" + hex.EncodeToString(sum[:])
}

// NewWord creates a dictionary entry for a lemma.
func NewWord(landID, lemma, language string, keywords []string) *Word {
	return &Word{
		ID:        WordID(landID, lemma, language),
		LandID:    landID,
		Lemma:     lemma,
		Language:  language,
		Keywords:  keywords,
		CreatedAt: time.Now().UTC(),
	}
}
