// Package tfserving calls a TensorFlow Serving REST endpoint so the original
// SavedModel artifacts can be served without conversion.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mangosense/mangosense-api/pkg/models"
)

// Sentinel errors for TensorFlow Serving transport failures.
var (
	ErrUnreachable = errors.New("tensorflow serving unreachable")
	ErrTimeout     = errors.New("tensorflow serving timeout")
)

// Client implements models.InferenceBackend over TensorFlow Serving's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new TensorFlow Serving client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string      { return "tfserving" }
func (c *Client) Extension() string { return "" }

// Run posts the tensor as a single instance to /v1/models/<name>:predict.
func (c *Client) Run(ctx context.Context, artifact models.ModelArtifact, input models.Tensor) ([]float32, error) {
	instance, err := reshape(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPrediction, err)
	}

	body, err := json.Marshal(predictRequest{Instances: []any{instance}})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", models.ErrPrediction, err)
	}

	u := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, url.PathEscape(artifact.Name))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrPrediction, classifyError(err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: Model file %s does not exist", models.ErrModelNotFound, artifact.Name)
	case resp.StatusCode != http.StatusOK:
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrPrediction, resp.StatusCode, e.Error)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", models.ErrPrediction, err)
	}
	if len(pr.Predictions) == 0 {
		return nil, fmt.Errorf("%w: model returned empty prediction array", models.ErrPrediction)
	}

	return pr.Predictions[0], nil
}

// Check queries /v1/models/<name> and requires at least one AVAILABLE version.
func (c *Client) Check(ctx context.Context, artifact models.ModelArtifact) error {
	u := fmt.Sprintf("%s/v1/models/%s", c.baseURL, url.PathEscape(artifact.Name))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: Model file %s does not exist", models.ErrModelNotFound, artifact.Name)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding status response: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("%w: no available version of %s", models.ErrModelNotFound, artifact.Name)
}

// reshape turns the flat NHWC batch of one into nested [h][w][c] rows.
func reshape(t models.Tensor) ([][][]float32, error) {
	if len(t.Shape) != 4 || t.Shape[0] != 1 {
		return nil, fmt.Errorf("expected [1,h,w,c] tensor, got shape %v", t.Shape)
	}
	h, w, ch := int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3])
	if h*w*ch != len(t.Data) {
		return nil, fmt.Errorf("tensor data length %d does not match shape %v", len(t.Data), t.Shape)
	}

	out := make([][][]float32, h)
	for y := 0; y < h; y++ {
		row := make([][]float32, w)
		for x := 0; x < w; x++ {
			off := (y*w + x) * ch
			row[x] = t.Data[off : off+ch]
		}
		out[y] = row
	}
	return out, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// --- TensorFlow Serving wire types ---

type predictRequest struct {
	Instances []any `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Compile-time check that Client implements InferenceBackend.
var _ models.InferenceBackend = (*Client)(nil)
