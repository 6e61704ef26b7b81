package catalog_test

import (
	"testing"

	"github.com/mangosense/mangosense-api/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Families(t *testing.T) {
	c := catalog.Default()

	leaf, ok := c.Family(catalog.Leaf)
	require.True(t, ok)
	assert.Equal(t, []string{"Anthracnose", "Die Back", "Healthy", "powdery mildew", "Sooty Mold"}, leaf.Labels)
	assert.Equal(t, "leaf-mobilenetv2", leaf.Artifact)
	assert.Equal(t, 224, leaf.InputSize)
	assert.Equal(t, float32(127.5), leaf.Normalization.Mean)

	fruit, ok := c.Family(catalog.Fruit)
	require.True(t, ok)
	assert.Equal(t, []string{"Anthracnose", "Healthy"}, fruit.Labels)

	fams := c.Families()
	require.Len(t, fams, 2)
	assert.Equal(t, catalog.Fruit, fams[0].Name)
	assert.Equal(t, catalog.Leaf, fams[1].Name)
	assert.Equal(t, 10, c.TreatmentCount())
}

func TestResolveFamily(t *testing.T) {
	tests := map[string]catalog.Family{
		"fruit":   catalog.Fruit,
		"FRUIT":   catalog.Fruit,
		" fruit ": catalog.Fruit,
		"leaf":    catalog.Leaf,
		"":        catalog.Leaf,
		"stem":    catalog.Leaf,
	}
	for in, want := range tests {
		assert.Equal(t, want, catalog.ResolveFamily(in), "input %q", in)
	}
}

func TestTreatment_LookupChain(t *testing.T) {
	c := catalog.Default()

	tests := []struct {
		name    string
		disease string
		want    string
	}{
		{"exact", "Healthy", "No treatment needed. Maintain good agricultural practices."},
		{"case insensitive", "powdery mildew", "Alternate spraying of Wettable sulphur 0.2 per cent at 15 days interval are recommended for effective control of the disease."},
		{"underscore separator", "Die_Back", "Pruning of the diseased twigs 2-3 inches below the affected portion and spraying Copper Oxychloride (0.3%) on infected trees controls the disease."},
		{"dash separator and case", "sooty-mold", "Pruning of affected branches and their prompt destruction followed by spraying of Wettasulf (0.2%) helps to control the disease."},
		{"surrounding whitespace", " Stem_End_Rot ", "Proper post-harvest handling and storage conditions are essential."},
		{"empty", "", "No treatment information available - disease name is empty."},
		{"unknown label", "Leaf Curl", "No treatment information available for 'Leaf Curl'. Please consult with an agricultural expert."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Treatment(tt.disease))
		})
	}
}

func TestTreatment_EveryLabelResolves(t *testing.T) {
	c := catalog.Default()
	for _, fam := range c.Families() {
		for _, label := range fam.Labels {
			got := c.Treatment(label)
			assert.NotEmpty(t, got)
			assert.NotContains(t, got, "consult with an agricultural expert", "label %q of %s fell through", label, fam.Name)
			assert.Equal(t, got, c.Treatment(label), "lookup must be idempotent")
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"no labels":   "families:\n  leaf:\n    artifact: a\n    input_size: 224\n    normalization: {mean: 1, scale: 1}\n",
		"no artifact": "families:\n  leaf:\n    input_size: 224\n    normalization: {mean: 1, scale: 1}\n    labels: [A]\n",
		"zero scale":  "families:\n  leaf:\n    artifact: a\n    input_size: 224\n    labels: [A]\n",
		"bad yaml":    "families: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
