// Package preflight checks a deployment before it serves traffic: model
// artifacts on disk, database reachability and available memory.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/inference"
	"github.com/mangosense/mangosense-api/pkg/models"
)

// MinArtifactBytes is the size below which an artifact is assumed to be an
// unfetched large-file pointer rather than real weights.
const MinArtifactBytes = 1000

// ArtifactStatus is the result of checking one family's model artifact.
type ArtifactStatus struct {
	Family  string
	Path    string
	Size    int64
	OK      bool
	Problem string
}

// CheckModels inspects the artifact of every catalog family. Local backends
// are checked on disk; remote backends through Check.
func CheckModels(ctx context.Context, cat *catalog.Catalog, backend models.InferenceBackend,
	locator *inference.Locator) ([]ArtifactStatus, bool) {
	var out []ArtifactStatus
	allOK := true
	for _, spec := range cat.Families() {
		artifact := locator.Artifact(spec)
		var st ArtifactStatus
		if backend.Extension() == "" {
			st = checkRemote(ctx, backend, artifact)
		} else {
			st = checkFile(artifact)
		}
		if !st.OK {
			allOK = false
		}
		out = append(out, st)
	}
	return out, allOK
}

func checkFile(artifact models.ModelArtifact) ArtifactStatus {
	st := ArtifactStatus{Family: artifact.Family, Path: artifact.Path}
	info, err := os.Stat(artifact.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		st.Problem = "missing"
	case err != nil:
		st.Problem = err.Error()
	case info.IsDir():
		st.Problem = "is a directory"
	case info.Size() < MinArtifactBytes:
		st.Size = info.Size()
		st.Problem = fmt.Sprintf("too small, likely a large-file pointer (%d bytes)", info.Size())
	default:
		st.Size = info.Size()
		st.OK = true
	}
	return st
}

func checkRemote(ctx context.Context, backend models.InferenceBackend, artifact models.ModelArtifact) ArtifactStatus {
	st := ArtifactStatus{Family: artifact.Family, Path: artifact.Name}
	if err := backend.Check(ctx, artifact); err != nil {
		if errors.Is(err, models.ErrModelNotFound) {
			st.Problem = "not served"
		} else {
			st.Problem = err.Error()
		}
		return st
	}
	st.OK = true
	return st
}

// WriteModels prints one line per artifact.
func WriteModels(w io.Writer, statuses []ArtifactStatus) {
	for _, st := range statuses {
		if st.OK {
			if st.Size > 0 {
				fmt.Fprintf(w, "✓ %s model OK: %s (%.2f MB)\n", st.Family, st.Path, float64(st.Size)/(1024*1024))
			} else {
				fmt.Fprintf(w, "✓ %s model OK: %s\n", st.Family, st.Path)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s model %s: %s\n", st.Family, st.Problem, st.Path)
	}
}
