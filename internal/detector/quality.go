package detector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codesweep/codesweep/internal/model"
)

// DefaultFunctionLineLimit is the body length above which a function is
// reported as oversized.
const DefaultFunctionLineLimit = 50

var funcStartRe = regexp.MustCompile(`(?i)^\s*(export\s+)?(async\s+)?(function\s+\w+|func\s+(\(\w+\s+\*?\w+\)\s+)?\w+|(public|private|protected)?\s*\w+\s*=\s*(async\s*)?\()`)

// LongFunction tracks brace depth from each function opening to find bodies
// exceeding Limit lines. Zero Limit means DefaultFunctionLineLimit.
type LongFunction struct {
	Limit int
}

func (LongFunction) Name() string { return "long-function" }

func (d LongFunction) Inspect(f File) []model.Finding {
	limit := d.Limit
	if limit <= 0 {
		limit = DefaultFunctionLineLimit
	}

	var findings []model.Finding
	lines := strings.Split(f.Content, "\n")

	depth := 0
	startLine := 0 // 1-based line of the function currently open at depth 1
	for i, line := range lines {
		if depth == 0 && funcStartRe.MatchString(line) && strings.Contains(line, "{") {
			startLine = i + 1
		}
		for _, ch := range line {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 && startLine > 0 {
					length := i + 1 - startLine
					if length > limit {
						findings = append(findings, model.Finding{
							Title:          "Oversized function",
							Description:    fmt.Sprintf("Function body spans %d lines (limit %d), which hurts readability and testability.", length, limit),
							Severity:       model.SeverityLow,
							Category:       model.CategoryCodeQuality,
							FilePath:       f.Path,
							Line:           startLine,
							Code:           strings.TrimSpace(lines[startLine-1]),
							Recommendation: "Split the function into smaller, single-purpose helpers.",
						})
					}
					startLine = 0
				}
				if depth < 0 {
					depth = 0
				}
			}
		}
	}
	return findings
}

var asyncCallRe = regexp.MustCompile(`\bawait\s+\w|\.then\s*\(`)
var errorHandlingRe = regexp.MustCompile(`\btry\b|\bcatch\b|\.catch\s*\(`)

// contextWindow is how many lines around an async call count as "nearby"
// when looking for error handling.
const contextWindow = 10

// MissingErrorHandling flags async or promise call sites with no try/catch
// or .catch in the surrounding lines.
type MissingErrorHandling struct{}

func (MissingErrorHandling) Name() string { return "missing-error-handling" }

func (MissingErrorHandling) Inspect(f File) []model.Finding {
	lines := strings.Split(f.Content, "\n")
	for i, line := range lines {
		if !asyncCallRe.MatchString(line) {
			continue
		}
		lo := i - contextWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + contextWindow
		if hi >= len(lines) {
			hi = len(lines) - 1
		}
		handled := false
		for j := lo; j <= hi; j++ {
			if errorHandlingRe.MatchString(lines[j]) {
				handled = true
				break
			}
		}
		if handled {
			continue
		}
		return []model.Finding{{
			Title:          "Missing error handling on async call",
			Description:    "An asynchronous call has no try/catch or .catch nearby; a rejection here becomes an unhandled error.",
			Severity:       model.SeverityMedium,
			Category:       model.CategoryCodeQuality,
			FilePath:       f.Path,
			Line:           i + 1,
			Code:           strings.TrimSpace(line),
			Recommendation: "Wrap the call in try/catch or attach a .catch handler.",
		}}
	}
	return nil
}

// QualityDetectors returns the per-file detectors of the quality phase.
func QualityDetectors() []Detector {
	return []Detector{LongFunction{}, MissingErrorHandling{}}
}
