package conversations

import "strings"

// Conversation type labels produced by Classify, in tie-break priority
// order. The first label whose keyword hits equal the best count wins.
const (
	TypeArchitecture   = "architecture"
	TypeDebugging      = "debugging"
	TypeProblemSolving = "problem_solving"
	TypeCodeDiscussion = "code_discussion"
	TypeTechnical      = "technical"
	TypeGeneral        = "general"
)

// TypePriority is the fixed tie-break order for classification.
var TypePriority = []string{
	TypeArchitecture,
	TypeDebugging,
	TypeProblemSolving,
	TypeCodeDiscussion,
	TypeTechnical,
	TypeGeneral,
}

// ValidType reports whether label is a known classifier output.
func ValidType(label string) bool {
	for _, t := range TypePriority {
		if t == label {
			return true
		}
	}
	return false
}

var typeKeywords = map[string][]string{
	TypeArchitecture: {
		"architecture", "design pattern", "microservice", "component",
		"scalab", "system design", "module boundary", "interface design",
		"refactor the structure", "data model",
	},
	TypeDebugging: {
		"debug", "error", "exception", "stack trace", "traceback",
		"crash", "panic", "segfault", "not working", "broken",
		"fails", "failing", "bug",
	},
	TypeProblemSolving: {
		"how do i", "how to", "solve", "solution", "approach",
		"algorithm", "optimize", "performance", "workaround", "fix this",
	},
	TypeCodeDiscussion: {
		"function", "method", "class", "variable", "refactor",
		"implement", "code review", "snippet", "syntax", "api call",
	},
	TypeTechnical: {
		"database", "deploy", "docker", "kubernetes", "server",
		"configuration", "install", "dependency", "version", "library",
	},
}

// classifyScanLimit bounds how much message text one classification
// reads; long sessions are represented well by their opening exchanges.
const classifyScanLimit = 50_000

// Classify labels a conversation by scanning its message text for the
// keyword sets above. Pure function of the content. Conversations with
// no text, or no keyword hits, are labeled general.
func Classify(c *Conversation) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(c.Title))
	b.WriteByte('\n')
	for _, m := range c.Messages {
		if b.Len() >= classifyScanLimit {
			break
		}
		b.WriteString(strings.ToLower(m.Content))
		b.WriteByte('\n')
	}
	text := b.String()
	if len(text) > classifyScanLimit {
		text = text[:classifyScanLimit]
	}

	best := TypeGeneral
	bestHits := 0
	// Walk in priority order so equal counts keep the earlier label.
	for _, label := range TypePriority {
		keywords, ok := typeKeywords[label]
		if !ok {
			continue
		}
		hits := 0
		for _, kw := range keywords {
			hits += strings.Count(text, kw)
		}
		if hits > bestHits {
			best = label
			bestHits = hits
		}
	}
	return best
}
