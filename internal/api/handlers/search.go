package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/faces"
	"github.com/your-org/lineage/pkg/dto"
)

type SearchHandler struct {
	searcher *faces.Searcher
}

func NewSearchHandler(searcher *faces.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Similar answers one topK/threshold similarity query.
func (h *SearchHandler) Similar(c *gin.Context) {
	var req dto.SimilaritySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hits, err := h.searcher.SearchBySimilarity(c.Request.Context(), auth.GetPrincipal(c), faces.SimilarityQuery{
		Embedding: req.Embedding,
		TopK:      req.TopK,
		Threshold: req.Threshold,
		FamilyID:  req.FamilyID,
		MemberID:  req.MemberID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.SimilaritySearchResponse{Hits: make([]dto.SimilarityHit, 0, len(hits))}
	for _, hit := range hits {
		resp.Hits = append(resp.Hits, dto.SimilarityHit{ExternalID: hit.ExternalID, Score: hit.Score})
	}
	resp.Total = len(resp.Hits)
	c.JSON(http.StatusOK, resp)
}

// SimilarBatch answers one ranked list per query embedding, in input order.
func (h *SearchHandler) SimilarBatch(c *gin.Context) {
	var req dto.BatchSimilaritySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	queries := make([]faces.SimilarityQuery, 0, len(req.Queries))
	for _, q := range req.Queries {
		queries = append(queries, faces.SimilarityQuery{
			Embedding: q.Embedding,
			TopK:      q.TopK,
			Threshold: q.Threshold,
			FamilyID:  q.FamilyID,
			MemberID:  q.MemberID,
		})
	}

	results, err := h.searcher.SearchBySimilarityBatch(c.Request.Context(), auth.GetPrincipal(c), queries)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.BatchSimilaritySearchResponse{Results: make([]dto.BatchSimilarityResult, 0, len(results))}
	for _, r := range results {
		item := dto.BatchSimilarityResult{Failed: r.Failed, Error: r.Error, Hits: []dto.SimilarityHit{}}
		for _, hit := range r.Hits {
			item.Hits = append(item.Hits, dto.SimilarityHit{ExternalID: hit.ExternalID, Score: hit.Score})
		}
		resp.Results = append(resp.Results, item)
	}
	c.JSON(http.StatusOK, resp)
}

// Attributes pages face records by relational filters.
func (h *SearchHandler) Attributes(c *gin.Context) {
	q := faces.FaceQuery{
		Emotion:     c.Query("emotion"),
		SearchQuery: c.Query("search_query"),
		SortBy:      faces.SortField(c.Query("sort_by")),
		SortOrder:   faces.SortOrder(c.Query("sort_order")),
	}

	if v := c.Query("family_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid family_id"})
			return
		}
		q.FamilyID = &id
	}
	if v := c.Query("member_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member_id"})
			return
		}
		q.MemberID = &id
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.PageSize, _ = strconv.Atoi(c.DefaultQuery("items_per_page", "20"))

	page, err := h.searcher.SearchByAttributes(c.Request.Context(), auth.GetPrincipal(c), q)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.FaceListResponse{
		Faces:    make([]dto.FaceDetailResponse, 0, len(page.Records)),
		Total:    page.Total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	for i := range page.Records {
		resp.Faces = append(resp.Faces, detailToResponse(&page.Records[i]))
	}
	c.JSON(http.StatusOK, resp)
}
