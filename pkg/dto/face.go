package dto

import (
	"github.com/google/uuid"
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type CreateFaceRequest struct {
	BoundingBox       BoundingBox `json:"bounding_box" binding:"required"`
	Confidence        float64     `json:"confidence"`
	Embedding         []float32   `json:"embedding" binding:"required"`
	Emotion           string      `json:"emotion,omitempty"`
	EmotionConfidence *float64    `json:"emotion_confidence,omitempty"`
	ThumbnailURL      string      `json:"thumbnail_url,omitempty"`
	OriginalImageURL  string      `json:"original_image_url,omitempty"`
}

type UpdateFaceRequest struct {
	BoundingBox       *BoundingBox `json:"bounding_box,omitempty"`
	Emotion           *string      `json:"emotion,omitempty"`
	EmotionConfidence *float64     `json:"emotion_confidence,omitempty"`
}

type FaceResponse struct {
	ID                uuid.UUID   `json:"id"`
	MemberID          uuid.UUID   `json:"member_id"`
	BoundingBox       BoundingBox `json:"bounding_box"`
	Confidence        float64     `json:"confidence"`
	Emotion           string      `json:"emotion,omitempty"`
	EmotionConfidence *float64    `json:"emotion_confidence,omitempty"`
	ThumbnailURL      string      `json:"thumbnail_url,omitempty"`
	OriginalImageURL  string      `json:"original_image_url,omitempty"`
	SyncState         string      `json:"sync_state"`
	VectorIndexID     *string     `json:"vector_index_id,omitempty"`
	CreatedAt         string      `json:"created_at"`
}

type FaceDetailResponse struct {
	FaceResponse
	MemberName string    `json:"member_name"`
	FamilyID   uuid.UUID `json:"family_id"`
	FamilyName string    `json:"family_name"`
}

type FaceListResponse struct {
	Faces    []FaceDetailResponse `json:"faces"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}
