package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/faces"
	"github.com/your-org/lineage/internal/models"
	"github.com/your-org/lineage/internal/storage"
	"github.com/your-org/lineage/pkg/dto"
)

type FaceHandler struct {
	svc   *faces.Service
	media *storage.MediaStore
}

func NewFaceHandler(svc *faces.Service, media *storage.MediaStore) *FaceHandler {
	return &FaceHandler{svc: svc, media: media}
}

// Create accepts an already-detected face for a member.
func (h *FaceHandler) Create(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	var req dto.CreateFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	face, err := h.svc.CreateFaceRecord(c.Request.Context(), auth.GetPrincipal(c), faces.CreateFaceInput{
		MemberID: memberID,
		BoundingBox: models.BoundingBox{
			X: req.BoundingBox.X, Y: req.BoundingBox.Y,
			Width: req.BoundingBox.Width, Height: req.BoundingBox.Height,
		},
		Confidence:        req.Confidence,
		Embedding:         req.Embedding,
		Emotion:           req.Emotion,
		EmotionConfidence: req.EmotionConfidence,
		ThumbnailURL:      req.ThumbnailURL,
		OriginalImageURL:  req.OriginalImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, faceToResponse(face))
}

// Detect runs the external detector on an uploaded image and creates one
// face record per detected face.
func (h *FaceHandler) Detect(c *gin.Context) {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	resize := c.PostForm("resize") == "true" || c.PostForm("resize") == "1"
	originalURL := c.PostForm("original_image_url")

	created, err := h.svc.DetectAndCreate(c.Request.Context(), auth.GetPrincipal(c), memberID, imageData, resize, originalURL)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.FaceResponse, 0, len(created))
	for i := range created {
		resp = append(resp, faceToResponse(&created[i]))
	}
	c.JSON(http.StatusCreated, gin.H{"faces": resp, "total": len(resp)})
}

func (h *FaceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	face, err := h.svc.GetFace(c.Request.Context(), auth.GetPrincipal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, faceToResponse(face))
}

// Update applies an explicit correction to bounding box or emotion fields.
func (h *FaceHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	var req dto.UpdateFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := faces.UpdateFaceInput{
		Emotion:           req.Emotion,
		EmotionConfidence: req.EmotionConfidence,
	}
	if req.BoundingBox != nil {
		in.BoundingBox = &models.BoundingBox{
			X: req.BoundingBox.X, Y: req.BoundingBox.Y,
			Width: req.BoundingBox.Width, Height: req.BoundingBox.Height,
		}
	}

	face, err := h.svc.UpdateFaceRecord(c.Request.Context(), auth.GetPrincipal(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, faceToResponse(face))
}

func (h *FaceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	if err := h.svc.DeleteFaceRecord(c.Request.Context(), auth.GetPrincipal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Thumbnail proxies the face thumbnail image from media storage.
func (h *FaceHandler) Thumbnail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	face, err := h.svc.GetFace(c.Request.Context(), auth.GetPrincipal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if face.ThumbnailURL == "" || h.media == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no thumbnail"})
		return
	}

	data, err := h.media.GetObject(c.Request.Context(), face.ThumbnailURL)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
