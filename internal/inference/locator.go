package inference

import (
	"path/filepath"

	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/mangosense/mangosense-api/internal/config"
	"github.com/mangosense/mangosense-api/pkg/models"
)

// Locator resolves the fixed artifact location for each family.
type Locator struct {
	dir       string
	ext       string
	overrides map[catalog.Family]string
}

// NewLocator builds a Locator for artifacts with the given file extension.
func NewLocator(cfg config.InferenceConfig, ext string) *Locator {
	overrides := make(map[catalog.Family]string)
	if cfg.LeafModelPath != "" {
		overrides[catalog.Leaf] = cfg.LeafModelPath
	}
	if cfg.FruitModelPath != "" {
		overrides[catalog.Fruit] = cfg.FruitModelPath
	}
	return &Locator{dir: cfg.ModelDir, ext: ext, overrides: overrides}
}

// Artifact returns the artifact for a family: the explicit override path if
// configured, else <dir>/<artifact><ext>.
func (l *Locator) Artifact(spec catalog.FamilySpec) models.ModelArtifact {
	path, ok := l.overrides[spec.Name]
	if !ok {
		path = filepath.Join(l.dir, spec.Artifact+l.ext)
	}
	return models.ModelArtifact{
		Family: string(spec.Name),
		Name:   spec.Artifact,
		Path:   path,
	}
}
