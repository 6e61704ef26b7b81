package tfserving

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mangosense/mangosense-api/pkg/models"
)

// --- helpers ---

func tfsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func tensor(h, w int) models.Tensor {
	data := make([]float32, h*w*3)
	for i := range data {
		data[i] = float32(i)
	}
	return models.Tensor{Data: data, Shape: []int64{1, int64(h), int64(w), 3}}
}

var leaf = models.ModelArtifact{Family: "leaf", Name: "leaf-mobilenetv2"}

// --- Run tests ---

func TestRun_ValidResponse(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/leaf-mobilenetv2:predict" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}

		var req struct {
			Instances [][][][]float32 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Instances) != 1 || len(req.Instances[0]) != 2 || len(req.Instances[0][0]) != 2 {
			t.Errorf("unexpected instance shape")
		}
		// pixel (0,1) channel 2 is flat index 5
		if got := req.Instances[0][0][1][2]; got != 5 {
			t.Errorf("instance[0][0][1][2] = %v, want 5", got)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"predictions": [][]float32{{0.05, 0.05, 0.8, 0.05, 0.05}},
		})
	})
	defer ts.Close()

	c := NewClient(ts.URL+"/", 5*time.Second)
	out, err := c.Run(context.Background(), leaf, tensor(2, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5 || out[2] != 0.8 {
		t.Errorf("unexpected predictions: %v", out)
	}
}

func TestRun_ModelNotFound(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Servable not found for request: Latest(leaf-mobilenetv2)"}`))
	})
	defer ts.Close()

	_, err := NewClient(ts.URL, 5*time.Second).Run(context.Background(), leaf, tensor(1, 1))
	if !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestRun_ServerError(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"input size mismatch"}`))
	})
	defer ts.Close()

	_, err := NewClient(ts.URL, 5*time.Second).Run(context.Background(), leaf, tensor(1, 1))
	if !errors.Is(err, models.ErrPrediction) {
		t.Fatalf("expected ErrPrediction, got %v", err)
	}
	if got := err.Error(); got != "model prediction failed: status 400: input size mismatch" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestRun_EmptyPredictions(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	})
	defer ts.Close()

	_, err := NewClient(ts.URL, 5*time.Second).Run(context.Background(), leaf, tensor(1, 1))
	if !errors.Is(err, models.ErrPrediction) {
		t.Fatalf("expected ErrPrediction, got %v", err)
	}
}

func TestRun_Unreachable(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := ts.URL
	ts.Close()

	_, err := NewClient(url, time.Second).Run(context.Background(), leaf, tensor(1, 1))
	if !errors.Is(err, models.ErrPrediction) {
		t.Fatalf("expected ErrPrediction, got %v", err)
	}
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	defer ts.Close()

	_, err := NewClient(ts.URL, 50*time.Millisecond).Run(context.Background(), leaf, tensor(1, 1))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRun_BadShape(t *testing.T) {
	c := NewClient("http://unused", time.Second)
	_, err := c.Run(context.Background(), leaf, models.Tensor{Data: []float32{1, 2}, Shape: []int64{2}})
	if !errors.Is(err, models.ErrPrediction) {
		t.Fatalf("expected ErrPrediction, got %v", err)
	}
}

// --- Check tests ---

func TestCheck_Available(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/leaf-mobilenetv2" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"model_version_status":[{"version":"1","state":"AVAILABLE"}]}`))
	})
	defer ts.Close()

	if err := NewClient(ts.URL, time.Second).Check(context.Background(), leaf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheck_NotAvailable(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model_version_status":[{"version":"1","state":"LOADING"}]}`))
	})
	defer ts.Close()

	err := NewClient(ts.URL, time.Second).Check(context.Background(), leaf)
	if !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestCheck_NotFound(t *testing.T) {
	ts := tfsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer ts.Close()

	err := NewClient(ts.URL, time.Second).Check(context.Background(), leaf)
	if !errors.Is(err, models.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

// --- classifyError ---

func TestClassifyError(t *testing.T) {
	if err := classifyError(context.DeadlineExceeded); !errors.Is(err, ErrTimeout) {
		t.Errorf("deadline: got %v", err)
	}
	if err := classifyError(errors.New("connection refused")); !errors.Is(err, ErrUnreachable) {
		t.Errorf("generic: got %v", err)
	}
}
