package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/lineage/internal/faces"
	"github.com/your-org/lineage/internal/models"
	"github.com/your-org/lineage/pkg/dto"
)

// respondError maps the faces error taxonomy to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case faces.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case faces.IsForbidden(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case faces.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case faces.IsExternal(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func faceToResponse(f *models.FaceRecord) dto.FaceResponse {
	return dto.FaceResponse{
		ID:       f.ID,
		MemberID: f.MemberID,
		BoundingBox: dto.BoundingBox{
			X: f.BoundingBox.X, Y: f.BoundingBox.Y,
			Width: f.BoundingBox.Width, Height: f.BoundingBox.Height,
		},
		Confidence:        f.Confidence,
		Emotion:           f.Emotion,
		EmotionConfidence: f.EmotionConfidence,
		ThumbnailURL:      f.ThumbnailURL,
		OriginalImageURL:  f.OriginalImageURL,
		SyncState:         string(f.SyncState),
		VectorIndexID:     f.VectorIndexID,
		CreatedAt:         f.CreatedAt.Format(time.RFC3339),
	}
}

func detailToResponse(d *models.FaceDetail) dto.FaceDetailResponse {
	return dto.FaceDetailResponse{
		FaceResponse: faceToResponse(&d.FaceRecord),
		MemberName:   d.MemberName,
		FamilyID:     d.FamilyID,
		FamilyName:   d.FamilyName,
	}
}
