package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/config"
)

// HTTPClient talks JSON to the knowledge service's vector API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	namespace string
	hc        *http.Client
}

func NewHTTPClient(cfg config.VectorIndexConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		hc:        &http.Client{Timeout: cfg.Timeout.Std()},
	}
}

type upsertRequest struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Vector    []float32 `json:"vector"`
	Metadata  Metadata  `json:"metadata"`
}

type upsertResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) Upsert(ctx context.Context, id string, embedding []float32, meta Metadata) (string, error) {
	var resp upsertResponse
	err := c.do(ctx, http.MethodPut, "/v1/vectors/"+url.PathEscape(id), upsertRequest{
		ID:        id,
		Namespace: c.namespace,
		Vector:    embedding,
		Metadata:  meta,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("upsert vector %s: empty id in response", id)
	}
	return resp.ID, nil
}

func (c *HTTPClient) DeleteByFamily(ctx context.Context, familyID uuid.UUID) error {
	path := fmt.Sprintf("/v1/vectors?namespace=%s&family_id=%s",
		url.QueryEscape(c.namespace), familyID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) DeleteByID(ctx context.Context, id string) error {
	path := fmt.Sprintf("/v1/vectors/%s?namespace=%s",
		url.PathEscape(id), url.QueryEscape(c.namespace))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

type queryRequest struct {
	Namespace string     `json:"namespace"`
	Vector    []float32  `json:"vector"`
	TopK      int        `json:"top_k"`
	Threshold float64    `json:"threshold"`
	FamilyID  *uuid.UUID `json:"family_id,omitempty"`
	MemberID  *uuid.UUID `json:"member_id,omitempty"`
}

type queryResponse struct {
	Hits []Hit `json:"hits"`
}

func (c *HTTPClient) Query(ctx context.Context, embedding []float32, topK int, threshold float64, filter QueryFilter) ([]Hit, error) {
	var resp queryResponse
	err := c.do(ctx, http.MethodPost, "/v1/vectors/query", queryRequest{
		Namespace: c.namespace,
		Vector:    embedding,
		TopK:      topK,
		Threshold: threshold,
		FamilyID:  filter.FamilyID,
		MemberID:  filter.MemberID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("vector index %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("vector index %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
