package detector

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesweep/codesweep/internal/model"
)

func TestProjectSize_SmallProject(t *testing.T) {
	files := []File{
		{Path: "a.go", Content: "package a"},
		{Path: "b.go", Content: "package b"},
	}
	assert.Empty(t, ProjectSize{}.InspectProject(files))
}

func TestProjectSize_LargeProject(t *testing.T) {
	big := strings.Repeat("x", 6<<20)
	files := []File{
		{Path: "blob1.js", Content: big},
		{Path: "blob2.js", Content: big},
	}

	findings := ProjectSize{}.InspectProject(files)

	require.Len(t, findings, 1)
	assert.Equal(t, model.CategoryPerformance, findings[0].Category)
	assert.Equal(t, model.SeverityLow, findings[0].Severity)
}

func TestVulnerableDependency_FixedSeed(t *testing.T) {
	files := []File{{Path: "package.json", Content: "{}"}}

	first := VulnerableDependency{Rand: rand.New(rand.NewSource(42))}.InspectProject(files)
	second := VulnerableDependency{Rand: rand.New(rand.NewSource(42))}.InspectProject(files)

	assert.Equal(t, first, second)
	for _, f := range first {
		assert.Equal(t, model.CategoryDependency, f.Category)
		assert.Equal(t, "CWE-1104", f.CWE)
	}
}

func TestVulnerableDependency_NilRand(t *testing.T) {
	files := []File{{Path: "package.json", Content: "{}"}}
	assert.Empty(t, VulnerableDependency{}.InspectProject(files))
}

func TestVulnerableDependency_NoFiles(t *testing.T) {
	d := VulnerableDependency{Rand: rand.New(rand.NewSource(1))}
	assert.Empty(t, d.InspectProject(nil))
}
