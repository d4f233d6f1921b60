package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncState tracks whether a face record's projection in the external
// vector index agrees with its relational state. It is derived: only the
// indexer transitions it, never API callers.
type SyncState string

const (
	SyncStateNotSynced  SyncState = "not_synced"
	SyncStateSynced     SyncState = "synced"
	SyncStateSyncFailed SyncState = "sync_failed"
)

// CanTransition reports whether the sync state machine permits moving from
// s to next. Permitted: not_synced->synced, not_synced->sync_failed,
// synced->synced, synced->sync_failed, sync_failed->synced,
// sync_failed->sync_failed.
func (s SyncState) CanTransition(next SyncState) bool {
	if next == SyncStateNotSynced {
		return false
	}
	return next == SyncStateSynced || next == SyncStateSyncFailed
}

// BoundingBox is a pixel-space rectangle within the original image.
type BoundingBox struct {
	X      float64 `json:"x" db:"bbox_x"`
	Y      float64 `json:"y" db:"bbox_y"`
	Width  float64 `json:"width" db:"bbox_width"`
	Height float64 `json:"height" db:"bbox_height"`
}

// FaceRecord is the authoritative relational record of one detected face.
// The vector index holds a derived, rebuildable projection of it.
type FaceRecord struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	MemberID          uuid.UUID   `json:"member_id" db:"member_id"`
	BoundingBox       BoundingBox `json:"bounding_box"`
	Confidence        float64     `json:"confidence" db:"confidence"`
	Embedding         []float32   `json:"-" db:"embedding"`
	ThumbnailURL      string      `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	OriginalImageURL  string      `json:"original_image_url,omitempty" db:"original_image_url"`
	Emotion           string      `json:"emotion,omitempty" db:"emotion"`
	EmotionConfidence *float64    `json:"emotion_confidence,omitempty" db:"emotion_confidence"`
	SyncState         SyncState   `json:"sync_state" db:"sync_state"`
	VectorIndexID     *string     `json:"vector_index_id,omitempty" db:"vector_index_id"`
	CreatedBy         uuid.UUID   `json:"created_by" db:"created_by"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

// MarkSynced records a successful upsert under externalID.
func (f *FaceRecord) MarkSynced(externalID string) {
	f.SyncState = SyncStateSynced
	f.VectorIndexID = &externalID
}

// MarkSyncFailed records a failed upsert. The external id is cleared so the
// invariant "vector_index_id set iff synced" holds at rest; a later
// successful sync restores the same external identity because upserts
// always use the record's own id.
func (f *FaceRecord) MarkSyncFailed() {
	f.SyncState = SyncStateSyncFailed
	f.VectorIndexID = nil
}

// FaceDetail is a face record joined to its owning member and family,
// as returned by attribute search.
type FaceDetail struct {
	FaceRecord
	MemberName string    `json:"member_name"`
	FamilyID   uuid.UUID `json:"family_id"`
	FamilyName string    `json:"family_name"`
}
