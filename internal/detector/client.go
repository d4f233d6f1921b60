// Package detector wraps the external face-detection service. Given an
// image it returns bounding boxes, confidences, and embeddings; the model
// itself lives behind the HTTP boundary.
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/your-org/lineage/internal/config"
	"github.com/your-org/lineage/internal/models"
)

// Detection is one face found in an image.
type Detection struct {
	BoundingBox       models.BoundingBox `json:"bounding_box"`
	Confidence        float64            `json:"confidence"`
	Embedding         []float32          `json:"embedding"`
	Emotion           string             `json:"emotion,omitempty"`
	EmotionConfidence *float64           `json:"emotion_confidence,omitempty"`
	ThumbnailBase64   string             `json:"thumbnail_base64,omitempty"`
}

type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(cfg config.DetectorConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		hc:      &http.Client{Timeout: cfg.Timeout.Std()},
	}
}

type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
	Resize      bool   `json:"resize"`
}

type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// Detect submits an image for analysis. The resize flag asks the service to
// downscale before detection, trading accuracy for speed on large uploads.
func (c *Client) Detect(ctx context.Context, image []byte, resize bool) ([]Detection, error) {
	payload, err := json.Marshal(detectRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		Resize:      resize,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/detect", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("detector status %d: %s", resp.StatusCode, data)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}
	return out.Faces, nil
}
