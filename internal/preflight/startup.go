package preflight

import (
	"context"
	"fmt"
	"io"

	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/inference"
	"github.com/mangosense/mangosense-api/pkg/models"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"
)

// MinMemoryBytes is the available memory below which startup warns.
const MinMemoryBytes = 512 * 1024 * 1024

type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Check is one line of the startup report.
type Check struct {
	Name    string
	Status  Status
	Message string
}

// Report is the ordered result of Startup.
type Report struct {
	Checks []Check
}

// Failed reports whether any check failed outright.
func (r Report) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFailed {
			return true
		}
	}
	return false
}

func (r Report) Write(w io.Writer) {
	for _, c := range r.Checks {
		fmt.Fprintf(w, "%s %s: %s\n", glyph(c.Status), c.Name, c.Message)
	}
}

func glyph(s Status) string {
	switch s {
	case StatusPassed:
		return "✓"
	case StatusWarning:
		return "⚠"
	case StatusSkipped:
		return "-"
	default:
		return "✗"
	}
}

// Pinger is the part of the store the startup check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StartupDeps are the pieces Startup inspects. A nil Database skips the
// database check; a nil Memory uses gopsutil.
type StartupDeps struct {
	Database Pinger
	Catalog  *catalog.Catalog
	Backend  models.InferenceBackend
	Locator  *inference.Locator
	Memory   func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// Startup runs the database, artifact and memory checks concurrently and
// returns them in a fixed order. Missing artifacts only warn here;
// CheckModels is the strict gate.
func Startup(ctx context.Context, deps StartupDeps) Report {
	var (
		database, memory Check
		artifacts        []Check
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		database = checkDatabase(gctx, deps.Database)
		return nil
	})
	g.Go(func() error {
		statuses, _ := CheckModels(gctx, deps.Catalog, deps.Backend, deps.Locator)
		for _, st := range statuses {
			artifacts = append(artifacts, artifactCheck(st))
		}
		return nil
	})
	g.Go(func() error {
		memory = checkMemory(gctx, deps.Memory)
		return nil
	})
	_ = g.Wait()

	checks := []Check{database}
	checks = append(checks, artifacts...)
	checks = append(checks, memory)
	return Report{Checks: checks}
}

func checkDatabase(ctx context.Context, db Pinger) Check {
	c := Check{Name: "Database"}
	if db == nil {
		c.Status = StatusSkipped
		c.Message = "not configured"
		return c
	}
	if err := db.Ping(ctx); err != nil {
		c.Status = StatusFailed
		c.Message = fmt.Sprintf("connection failed: %v", err)
		return c
	}
	c.Status = StatusPassed
	c.Message = "connection OK"
	return c
}

func artifactCheck(st ArtifactStatus) Check {
	c := Check{Name: fmt.Sprintf("Model (%s)", st.Family)}
	switch {
	case !st.OK:
		c.Status = StatusWarning
		c.Message = fmt.Sprintf("%s: %s", st.Problem, st.Path)
	case st.Size > 0:
		c.Status = StatusPassed
		c.Message = fmt.Sprintf("found %s (%.2f MB)", st.Path, float64(st.Size)/(1024*1024))
	default:
		c.Status = StatusPassed
		c.Message = "served as " + st.Path
	}
	return c
}

func checkMemory(ctx context.Context, probe func(context.Context) (*mem.VirtualMemoryStat, error)) Check {
	c := Check{Name: "Memory"}
	if probe == nil {
		probe = mem.VirtualMemoryWithContext
	}
	v, err := probe(ctx)
	if err != nil {
		c.Status = StatusSkipped
		c.Message = "could not check memory"
		return c
	}

	const gb = 1024 * 1024 * 1024
	c.Message = fmt.Sprintf("%.2f GB available / %.2f GB", float64(v.Available)/gb, float64(v.Total)/gb)
	if v.Available < MinMemoryBytes {
		c.Status = StatusWarning
		c.Message += ", recommend at least 512 MB"
		return c
	}
	c.Status = StatusPassed
	return c
}
