// Package detector holds the heuristic rules the scan pipeline evaluates
// against project files. Detectors are pure: same input, same findings, and
// they never panic outward. They are intentionally approximate, pattern-based
// checks, not a static-analysis framework.
package detector

import (
	"log"
	"regexp"
	"strings"

	"github.com/codesweep/codesweep/internal/model"
)

// File is the slice of a project file a detector sees.
type File struct {
	Path     string
	Language string
	Content  string
}

// Detector inspects a single file and reports zero or more findings. The
// returned findings carry no scan/project identity; the phase runner stamps
// those before persisting.
type Detector interface {
	Name() string
	Inspect(f File) []model.Finding
}

// ProjectDetector inspects the project as a whole rather than file by file.
// Performance and dependency heuristics work at this granularity.
type ProjectDetector interface {
	Name() string
	InspectProject(files []File) []model.Finding
}

// SafeInspect runs a detector and converts a panic into zero findings. A
// broken rule must never take a phase down with it.
func SafeInspect(d Detector, f File) (findings []model.Finding) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[detector] %s panicked on %s: %v", d.Name(), f.Path, r)
			findings = nil
		}
	}()
	return d.Inspect(f)
}

// SafeInspectProject is SafeInspect for project-level detectors.
func SafeInspectProject(d ProjectDetector, files []File) (findings []model.Finding) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[detector] %s panicked: %v", d.Name(), r)
			findings = nil
		}
	}()
	return d.InspectProject(files)
}

// firstMatch returns the 1-based line number and trimmed text of the first
// line matching re, or (0, "") when nothing matches. Only the first matching
// line is ever reported.
func firstMatch(content string, re *regexp.Regexp) (int, string) {
	for i, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			return i + 1, strings.TrimSpace(line)
		}
	}
	return 0, ""
}
