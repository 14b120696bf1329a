package detector

import (
	"fmt"
	"math/rand"

	"github.com/codesweep/codesweep/internal/model"
)

// Thresholds for the project-size heuristic.
const (
	largeProjectBytes = 10 << 20 // 10 MiB of source
	manyFilesCount    = 2000
)

// ProjectSize reports coarse performance signals from aggregate project
// shape. It never looks inside file content.
type ProjectSize struct{}

func (ProjectSize) Name() string { return "project-size" }

func (ProjectSize) InspectProject(files []File) []model.Finding {
	var total int64
	for _, f := range files {
		total += int64(len(f.Content))
	}

	var findings []model.Finding
	if total > largeProjectBytes {
		findings = append(findings, model.Finding{
			Title:          "Large codebase",
			Description:    fmt.Sprintf("The project carries %d MiB of source across %d files; build and load times will degrade.", total>>20, len(files)),
			Severity:       model.SeverityLow,
			Category:       model.CategoryPerformance,
			Recommendation: "Consider splitting the codebase into smaller modules or pruning generated artifacts.",
		})
	}
	if len(files) > manyFilesCount {
		findings = append(findings, model.Finding{
			Title:          "Very high file count",
			Description:    fmt.Sprintf("The project contains %d files.", len(files)),
			Severity:       model.SeverityInfo,
			Category:       model.CategoryPerformance,
			Recommendation: "Audit for vendored or generated trees that do not belong in the repository.",
		})
	}
	return findings
}

// knownVulnerable is a small fixed advisory table standing in for a real
// feed. Name/version pairs, worst known issue per pair.
var knownVulnerable = []struct {
	pkg      string
	version  string
	cve      string
	severity model.Severity
	cvss     float64
}{
	{"lodash", "4.17.15", "CVE-2020-8203", model.SeverityHigh, 7.4},
	{"log4j-core", "2.14.1", "CVE-2021-44228", model.SeverityCritical, 10.0},
	{"minimist", "1.2.5", "CVE-2021-44906", model.SeverityCritical, 9.8},
	{"axios", "0.21.0", "CVE-2020-28168", model.SeverityMedium, 5.9},
	{"jquery", "3.4.0", "CVE-2020-11022", model.SeverityMedium, 6.1},
}

// VulnerableDependency samples the advisory table to approximate a
// dependency audit. The randomness is injected so tests can pin the seed;
// a nil source makes the detector report nothing.
type VulnerableDependency struct {
	Rand *rand.Rand
}

func (VulnerableDependency) Name() string { return "vulnerable-dependency" }

func (d VulnerableDependency) InspectProject(files []File) []model.Finding {
	if d.Rand == nil || len(files) == 0 {
		return nil
	}

	// Sample 0-2 advisories per scan.
	n := d.Rand.Intn(3)
	var findings []model.Finding
	for i := 0; i < n; i++ {
		adv := knownVulnerable[d.Rand.Intn(len(knownVulnerable))]
		findings = append(findings, model.Finding{
			Title:          fmt.Sprintf("Vulnerable dependency %s@%s", adv.pkg, adv.version),
			Description:    fmt.Sprintf("%s %s is affected by %s.", adv.pkg, adv.version, adv.cve),
			Severity:       adv.severity,
			Category:       model.CategoryDependency,
			Recommendation: fmt.Sprintf("Upgrade %s to a patched release.", adv.pkg),
			CWE:            "CWE-1104",
			CVSS:           adv.cvss,
		})
	}
	return findings
}

// PerformanceDetectors returns the project-level detectors of the
// performance phase.
func PerformanceDetectors() []ProjectDetector {
	return []ProjectDetector{ProjectSize{}}
}

// DependencyDetectors returns the project-level detectors of the dependency
// phase.
func DependencyDetectors(r *rand.Rand) []ProjectDetector {
	return []ProjectDetector{VulnerableDependency{Rand: r}}
}
