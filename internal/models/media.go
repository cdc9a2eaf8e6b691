package models

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Media kinds.
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
	MediaKindAudio = "audio"
	MediaKindOther = "other"
)

// Media is a media reference discovered on an expression. Dimension and
// color fields stay nil until the media-analysis pipeline processes the
// item; a failed analysis still flips IsProcessed so the item is not retried
// forever.
type Media struct {
	ID           string `json:"id"`
	ExpressionID string `json:"expression_id" badgerhold:"index"`
	LandID       string `json:"land_id" badgerhold:"index"`
	URL          string `json:"url"`
	Kind         string `json:"kind"`

	Width          *int     `json:"width"`
	Height         *int     `json:"height"`
	ByteSize       *int64   `json:"byte_size"`
	DominantColors []string `json:"dominant_colors"`
	PerceptualHash string   `json:"perceptual_hash"`

	IsProcessed bool       `json:"is_processed" badgerhold:"index"`
	AnalyzedAt  *time.Time `json:"analyzed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MediaID derives the storage key. (expression_id, url) is unique so the
// same reference discovered twice collides instead of duplicating.
func MediaID(expressionID, url string) string {
	sum := sha1.Sum([]byte(expressionID + "\n" + url))
	return "media_" + hex.EncodeToString(sum[:])
}

// NewMedia creates an unprocessed media reference.
func NewMedia(landID, expressionID, url, kind string) *Media {
	if kind == "" {
		kind = MediaKindFromURL(url)
	}
	return &Media{
		ID:           MediaID(expressionID, url),
		ExpressionID: expressionID,
		LandID:       landID,
		URL:          url,
		Kind:         kind,
		CreatedAt:    time.Now().UTC(),
	}
}

// MediaKindFromURL classifies a media URL by its extension.
func MediaKindFromURL(url string) string {
	lower := strings.ToLower(url)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	switch {
	case hasAnySuffix(lower, ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".ico", ".avif"):
		return MediaKindImage
	case hasAnySuffix(lower, ".mp4", ".webm", ".ogv", ".mov", ".avi", ".mkv"):
		return MediaKindVideo
	case hasAnySuffix(lower, ".mp3", ".ogg", ".wav", ".flac", ".m4a", ".aac"):
		return MediaKindAudio
	default:
		return MediaKindOther
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
