package detector

import (
	"fmt"
	"regexp"

	"github.com/codesweep/codesweep/internal/model"
)

// secretPattern is one family of hardcoded-credential patterns. Families are
// evaluated in order and at most one finding is reported per line, so a key
// that matches both an assignment pattern and a provider prefix counts once.
type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"password assignment", regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*["'][^"']{4,}["']`)},
	{"API key assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["'][^"']{8,}["']`)},
	{"token assignment", regexp.MustCompile(`(?i)(secret|token|auth[_-]?token)\s*[:=]\s*["'][^"']{8,}["']`)},
	{"Stripe live key", regexp.MustCompile(`sk_live_[0-9a-zA-Z]{16,}`)},
	{"AWS access key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"GitHub token", regexp.MustCompile(`ghp_[0-9a-zA-Z]{36}`)},
	{"Google API key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
}

// HardcodedSecret flags credentials committed into source.
type HardcodedSecret struct{}

func (HardcodedSecret) Name() string { return "hardcoded-secret" }

func (HardcodedSecret) Inspect(f File) []model.Finding {
	var findings []model.Finding
	seen := map[int]bool{}
	for _, p := range secretPatterns {
		line, snippet := firstMatch(f.Content, p.re)
		if line == 0 || seen[line] {
			continue
		}
		seen[line] = true
		findings = append(findings, model.Finding{
			Title:          "Hardcoded secret",
			Description:    fmt.Sprintf("A %s appears directly in the source.", p.name),
			Severity:       model.SeverityHigh,
			Category:       model.CategoryCryptography,
			FilePath:       f.Path,
			Line:           line,
			Code:           snippet,
			Recommendation: "Move secrets into environment variables or a secret manager and rotate the exposed credential.",
			CWE:            "CWE-798",
			CVSS:           7.5,
		})
	}
	return findings
}

var sqlConcatPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(query|sql|stmt|statement)\w*\s*(\+=|=[^=]*\+)\s*\w+`),
	regexp.MustCompile(`(?i)\b(query|execute|exec)\s*\(\s*["'][^"']*["']\s*\+`),
	regexp.MustCompile("(?i)\\b(select|insert|update|delete)\\b[^\n]*[\"'`]\\s*\\+\\s*\\w+"),
}

// SQLInjection flags string concatenation into query-like identifiers or
// SQL-looking literals.
type SQLInjection struct{}

func (SQLInjection) Name() string { return "sql-injection" }

func (SQLInjection) Inspect(f File) []model.Finding {
	for _, re := range sqlConcatPatterns {
		line, snippet := firstMatch(f.Content, re)
		if line == 0 {
			continue
		}
		return []model.Finding{{
			Title:          "Possible SQL injection",
			Description:    "User-controllable input appears to be concatenated into a SQL query string.",
			Severity:       model.SeverityCritical,
			Category:       model.CategoryInjection,
			FilePath:       f.Path,
			Line:           line,
			Code:           snippet,
			Recommendation: "Use parameterized queries or a query builder; never build SQL with string concatenation.",
			CWE:            "CWE-89",
			CVSS:           9.8,
		}}
	}
	return nil
}

type xssSink struct {
	sink string
	re   *regexp.Regexp
}

var xssSinks = []xssSink{
	{"innerHTML", regexp.MustCompile(`\.innerHTML\s*=`)},
	{"document.write", regexp.MustCompile(`document\.write\s*\(`)},
	{"eval", regexp.MustCompile(`\beval\s*\(`)},
}

// UnsafeSink flags assignments into XSS-prone DOM sinks.
type UnsafeSink struct{}

func (UnsafeSink) Name() string { return "unsafe-sink" }

func (UnsafeSink) Inspect(f File) []model.Finding {
	var findings []model.Finding
	for _, s := range xssSinks {
		line, snippet := firstMatch(f.Content, s.re)
		if line == 0 {
			continue
		}
		findings = append(findings, model.Finding{
			Title:          fmt.Sprintf("Unescaped output via %s", s.sink),
			Description:    fmt.Sprintf("Data flows into %s without escaping, which allows cross-site scripting if any of it is user-controlled.", s.sink),
			Severity:       model.SeverityHigh,
			Category:       model.CategoryDataValidation,
			FilePath:       f.Path,
			Line:           line,
			Code:           snippet,
			Recommendation: "Escape or sanitize dynamic content before writing it to the DOM; prefer textContent over innerHTML.",
			CWE:            "CWE-79",
			CVSS:           6.1,
		})
	}
	return findings
}

var weakCryptoRe = regexp.MustCompile(`(?i)\b(md5|sha-?1|des|rc4|ecb)\b`)

// WeakCrypto flags named weak primitives.
type WeakCrypto struct{}

func (WeakCrypto) Name() string { return "weak-crypto" }

func (WeakCrypto) Inspect(f File) []model.Finding {
	line, snippet := firstMatch(f.Content, weakCryptoRe)
	if line == 0 {
		return nil
	}
	return []model.Finding{{
		Title:          "Weak cryptographic primitive",
		Description:    "A cryptographic primitive with known practical attacks is referenced.",
		Severity:       model.SeverityMedium,
		Category:       model.CategoryCryptography,
		FilePath:       f.Path,
		Line:           line,
		Code:           snippet,
		Recommendation: "Use SHA-256 or stronger for hashing and AES-GCM for encryption.",
		CWE:            "CWE-327",
		CVSS:           5.9,
	}}
}

// SecurityDetectors returns the per-file detectors of the security phase.
func SecurityDetectors() []Detector {
	return []Detector{HardcodedSecret{}, SQLInjection{}, UnsafeSink{}, WeakCrypto{}}
}
