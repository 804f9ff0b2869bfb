// Package redact detects and masks secrets in conversation content
// before it leaves the server through exports or search snippets.
// Detection uses the Gitleaks SDK with its default rule set, narrowed
// by optional project and user allowlists.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding represents a detected secret with location information.
type Finding struct {
	RuleID      string // Gitleaks rule ID (e.g., "github-pat")
	Description string // Human-readable rule description
	Line        int    // Line number where the secret was found
	Secret      string // The matched secret value
}

// Summary aggregates findings for reporting without exposing values.
type Summary struct {
	TotalSecrets int            `json:"total_secrets"`
	RuleCounts   map[string]int `json:"rule_counts,omitempty"`
}

// Redactor scans content and replaces detected secrets with markers.
// The underlying detector is built once; scans are serialized because
// the Gitleaks detector is not documented as safe for concurrent use.
type Redactor struct {
	mu       sync.Mutex
	detector *detect.Detector
	enabled  bool
}

// New builds a Redactor with the default Gitleaks rule set and the
// given allowlist merged in. A nil allowlist applies no exclusions.
func New(allowlist *Allowlist) (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building secret detector: %w", err)
	}

	if allowlist != nil {
		applyAllowlist(&detector.Config, allowlist)
	}

	return &Redactor{detector: detector, enabled: true}, nil
}

// NewDisabled returns a Redactor that passes content through untouched.
// Used when the caller explicitly opts out of redaction.
func NewDisabled() *Redactor {
	return &Redactor{enabled: false}
}

// Enabled reports whether scans actually run.
func (r *Redactor) Enabled() bool {
	return r.enabled
}

// Scan returns findings for content without modifying it.
func (r *Redactor) Scan(content string) []Finding {
	if !r.enabled || content == "" {
		return nil
	}

	r.mu.Lock()
	gitleaksFindings := r.detector.DetectString(content)
	r.mu.Unlock()

	result := make([]Finding, 0, len(gitleaksFindings))
	for _, f := range gitleaksFindings {
		if f.Secret == "" {
			continue
		}
		result = append(result, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
			Secret:      f.Secret,
		})
	}
	return result
}

// Apply scans content and replaces every detected secret value with a
// [REDACTED:rule-id:prefix] marker. The marker keeps the rule and a
// four character preview so exports stay debuggable.
func (r *Redactor) Apply(content string) (string, []Finding) {
	findings := r.Scan(content)
	if len(findings) == 0 {
		return content, nil
	}
	return replaceSecrets(content, findings), findings
}

// Summarize aggregates findings into per-rule counts.
func Summarize(findings []Finding) Summary {
	s := Summary{TotalSecrets: len(findings)}
	if len(findings) == 0 {
		return s
	}
	s.RuleCounts = make(map[string]int, len(findings))
	for _, f := range findings {
		s.RuleCounts[f.RuleID]++
	}
	return s
}

// replaceSecrets substitutes each unique secret value with its marker.
// Replacement is by value rather than by reported position, so repeated
// occurrences of the same credential are all masked. Longer secrets are
// replaced first so a secret that contains another is not clobbered.
func replaceSecrets(content string, findings []Finding) string {
	markers := make(map[string]string, len(findings))
	for _, f := range findings {
		if _, seen := markers[f.Secret]; seen {
			continue
		}
		markers[f.Secret] = fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Secret, 4))
	}

	secrets := make([]string, 0, len(markers))
	for s := range markers {
		secrets = append(secrets, s)
	}
	sort.Slice(secrets, func(i, j int) bool {
		if len(secrets[i]) != len(secrets[j]) {
			return len(secrets[i]) > len(secrets[j])
		}
		return secrets[i] < secrets[j]
	})

	for _, s := range secrets {
		content = strings.ReplaceAll(content, s, markers[s])
	}
	return content
}

// preview returns the first n characters of a string.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// applyAllowlist merges allowlist patterns into the Gitleaks config.
// Patterns are pre-validated in loadTOML; a compile failure here means
// validation was bypassed.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) {
	globalAllowlist := &gitleaksConfig.Allowlist{
		Description: "Gandalf user/project allowlist",
	}

	for _, pattern := range allowlist.Paths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("BUG: pre-validated regex pattern failed to compile: " + pattern + ": " + err.Error())
		}
		globalAllowlist.Paths = append(globalAllowlist.Paths, (*gitleaksRegexp.Regexp)(re))
	}

	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("BUG: pre-validated regex pattern failed to compile: " + pattern + ": " + err.Error())
		}
		globalAllowlist.Regexes = append(globalAllowlist.Regexes, (*gitleaksRegexp.Regexp)(re))
	}

	globalAllowlist.StopWords = append(globalAllowlist.StopWords, allowlist.StopWords...)

	cfg.Allowlists = append(cfg.Allowlists, globalAllowlist)
}
