package aggregator

import (
	"math"
	"strings"
	"time"

	"github.com/gandalf-mcp/gandalf/internal/conversations"
)

// Relevance component weights. Title matches dominate: they are the
// strongest signal the conversation is about the queried subject.
const (
	titleWeight   = 0.4
	contentWeight = 0.3
	recencyWeight = 0.2
	volumeWeight  = 0.1

	// contentScanLimit bounds how many bytes of message text one
	// conversation contributes to matching.
	contentScanLimit = 100_000

	// snippetRadius is how much context surrounds the first content
	// match in the returned snippet.
	snippetRadius = 100

	// volumeSaturation is the exchange count at which the volume
	// component reaches 1.0.
	volumeSaturation = 50
)

// Relevance scores a conversation against the filter's query and
// returns the score plus a snippet of the matched context. A zero score
// means no term matched; the caller drops the conversation.
func Relevance(c *conversations.Conversation, f conversations.Filter) (float64, string) {
	terms := queryTerms(f.Query)
	if len(terms) == 0 {
		return 0, ""
	}

	titleScore := matchFraction(strings.ToLower(c.Title), terms)
	contentScore, snippet := scanContent(c, terms)
	if titleScore == 0 && contentScore == 0 {
		return 0, ""
	}

	ageDays := float64(f.Now-c.UpdatedAt) / float64(24*time.Hour/time.Millisecond)
	if ageDays < 0 {
		ageDays = 0
	}
	recency := math.Exp(-ageDays / 7.0)

	volume := float64(c.TotalExchanges) / volumeSaturation
	if volume > 1 {
		volume = 1
	}

	score := titleWeight*titleScore +
		contentWeight*contentScore +
		recencyWeight*recency +
		volumeWeight*volume

	if snippet == "" && titleScore > 0 {
		snippet = c.Title
	}
	return score, snippet
}

// queryTerms lowercases and splits the query on whitespace.
func queryTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// matchFraction reports the fraction of terms present in text.
func matchFraction(text string, terms []string) float64 {
	if text == "" {
		return 0
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// scanContent matches terms against a bounded window of message text
// and extracts a snippet around the first hit.
func scanContent(c *conversations.Conversation, terms []string) (float64, string) {
	matched := make(map[string]struct{}, len(terms))
	var snippet string
	scanned := 0

	for _, m := range c.Messages {
		if scanned >= contentScanLimit {
			break
		}
		content := m.Content
		if remaining := contentScanLimit - scanned; len(content) > remaining {
			content = content[:remaining]
		}
		scanned += len(content)

		lower := strings.ToLower(content)
		for _, t := range terms {
			idx := strings.Index(lower, t)
			if idx < 0 {
				continue
			}
			matched[t] = struct{}{}
			if snippet == "" {
				snippet = window(content, idx, len(t))
			}
		}
		if len(matched) == len(terms) && snippet != "" {
			break
		}
	}

	return float64(len(matched)) / float64(len(terms)), snippet
}

// window cuts a context window around a match, snapped to rune
// boundaries.
func window(text string, idx, matchLen int) string {
	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && text[start]&0xC0 == 0x80 {
		start--
	}
	for end < len(text) && text[end]&0xC0 == 0x80 {
		end++
	}
	out := strings.TrimSpace(text[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}
