package faces

import (
	"context"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/models"
)

// SortField selects the ordering column for attribute search.
type SortField string

const (
	SortByFaceID     SortField = "face_id"
	SortByConfidence SortField = "confidence"
	SortByMemberName SortField = "member_name"
	SortByFamilyName SortField = "family_name"
	SortByCreated    SortField = "created"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// FaceQuery describes one attribute search against the relational store.
// FamilyIDs, when non-nil, restricts results to those families; an empty
// non-nil slice matches nothing (the caller can view no family at all).
type FaceQuery struct {
	FamilyID    *uuid.UUID
	MemberID    *uuid.UUID
	Emotion     string
	SearchQuery string
	FamilyIDs   []uuid.UUID
	Restricted  bool
	Page        int
	PageSize    int
	SortBy      SortField
	SortOrder   SortOrder
}

// Store is the persistence contract the face subsystem needs. Lookups return
// (nil, nil) when the row is absent; callers translate that to ErrNotFound.
type Store interface {
	CreateFace(ctx context.Context, f *models.FaceRecord) error
	GetFace(ctx context.Context, id uuid.UUID) (*models.FaceRecord, error)
	UpdateFace(ctx context.Context, f *models.FaceRecord) error
	// UpdateFaceSync persists only the sync columns, so indexing never
	// races a concurrent attribute correction on the same record.
	UpdateFaceSync(ctx context.Context, id uuid.UUID, state models.SyncState, vectorIndexID *string) error
	DeleteFace(ctx context.Context, id uuid.UUID) error

	ListFacesByFamily(ctx context.Context, familyID uuid.UUID) ([]models.FaceRecord, error)
	ListAllFaces(ctx context.Context) ([]models.FaceRecord, error)
	SearchFaces(ctx context.Context, q FaceQuery) ([]models.FaceDetail, int, error)

	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetFamily(ctx context.Context, id uuid.UUID) (*models.Family, error)
}

// MediaStore holds face thumbnails and source images.
type MediaStore interface {
	PutThumbnail(ctx context.Context, memberID, faceID uuid.UUID, data []byte) (string, error)
	DeleteFaceObjects(ctx context.Context, memberID, faceID uuid.UUID) error
}

// Publisher emits face lifecycle events for downstream modules. Publish
// failures are logged by callers, never propagated.
type Publisher interface {
	PublishFaceEvent(ctx context.Context, kind string, payload interface{}) error
}
