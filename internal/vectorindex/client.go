// Package vectorindex abstracts the external similarity-search service that
// holds a derived projection of face embeddings. The relational store stays
// authoritative; everything here is rebuildable from it.
package vectorindex

import (
	"context"

	"github.com/google/uuid"
)

// Metadata travels with an embedding into the index and comes back on hits.
type Metadata struct {
	FamilyID          uuid.UUID `json:"family_id"`
	MemberID          uuid.UUID `json:"member_id"`
	FaceID            uuid.UUID `json:"face_id"`
	ThumbnailURL      string    `json:"thumbnail_url,omitempty"`
	OriginalImageURL  string    `json:"original_image_url,omitempty"`
	Emotion           string    `json:"emotion,omitempty"`
	EmotionConfidence *float64  `json:"emotion_confidence,omitempty"`
}

// QueryFilter narrows a similarity query to one family and/or member.
type QueryFilter struct {
	FamilyID *uuid.UUID
	MemberID *uuid.UUID
}

// Hit is one similarity result. Score is cosine similarity in [0,1].
type Hit struct {
	ExternalID string  `json:"external_id"`
	Score      float64 `json:"score"`
}

// Client is the narrow contract the core needs from the vector index.
// No retries happen inside implementations; callers own retry policy.
type Client interface {
	// Upsert stores an embedding under id, replacing any previous entry
	// with the same id, and returns the external identifier.
	Upsert(ctx context.Context, id string, embedding []float32, meta Metadata) (string, error)

	// DeleteByFamily removes every entry belonging to a family.
	DeleteByFamily(ctx context.Context, familyID uuid.UUID) error

	// DeleteByID removes one entry. Deleting an absent id is not an error.
	DeleteByID(ctx context.Context, id string) error

	// Query returns at most topK hits scoring at or above threshold,
	// strictly descending by score.
	Query(ctx context.Context, embedding []float32, topK int, threshold float64, filter QueryFilter) ([]Hit, error)
}
