package dto

import "github.com/google/uuid"

type SimilaritySearchRequest struct {
	Embedding []float32  `json:"embedding" binding:"required"`
	TopK      int        `json:"top_k"`
	Threshold float64    `json:"threshold"`
	FamilyID  *uuid.UUID `json:"family_id,omitempty"`
	MemberID  *uuid.UUID `json:"member_id,omitempty"`
}

type SimilarityHit struct {
	ExternalID string  `json:"external_id"`
	Score      float64 `json:"score"`
}

type SimilaritySearchResponse struct {
	Hits  []SimilarityHit `json:"hits"`
	Total int             `json:"total"`
}

type BatchSimilaritySearchRequest struct {
	Queries []SimilaritySearchRequest `json:"queries" binding:"required"`
}

// BatchSimilarityResult carries one ranked list per query embedding, in
// input order. Failed entries flag the item instead of failing the batch.
type BatchSimilarityResult struct {
	Hits   []SimilarityHit `json:"hits"`
	Failed bool            `json:"failed,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type BatchSimilaritySearchResponse struct {
	Results []BatchSimilarityResult `json:"results"`
}

type ReconcileRequest struct {
	FamilyID *uuid.UUID `json:"family_id,omitempty"`
}

type ReconcileResponse struct {
	FamilyID *uuid.UUID `json:"family_id,omitempty"`
	Synced   int        `json:"synced"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
}
