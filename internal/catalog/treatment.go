package catalog

import (
	"fmt"
	"strings"
)

const (
	// UnknownDisease is reported when the top score is below the confidence floor.
	UnknownDisease = "Unknown"

	// UnknownTreatment accompanies an UnknownDisease result.
	UnknownTreatment = "The uploaded image could not be confidently classified. Please ensure the image is of a mango leaf or fruit and try again."

	emptyDiseaseTreatment = "No treatment information available - disease name is empty."
)

// Treatment returns the advisory text for a disease label. Lookup order is
// exact, case-insensitive, then separator-normalized ('_' and '-' as spaces).
// Labels that match nothing get a message naming the label.
func (c *Catalog) Treatment(disease string) string {
	if disease == "" {
		return emptyDiseaseTreatment
	}

	if t, ok := c.treatments[disease]; ok && t != "" {
		return t
	}

	for _, k := range c.keys {
		if strings.EqualFold(k, disease) {
			return c.treatments[k]
		}
	}

	normalized := normalizeLabel(disease)
	for _, k := range c.keys {
		if strings.EqualFold(normalizeLabel(k), normalized) {
			return c.treatments[k]
		}
	}

	return fmt.Sprintf("No treatment information available for '%s'. Please consult with an agricultural expert.", disease)
}

func normalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.TrimSpace(s)
}
