// Package extract recovers best-effort citation lists from provider
// responses. Extraction layers run from most authoritative (structured
// citations returned by the API) to least authoritative (textual
// attribution phrases); results are deterministic for a given input.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// Extraction method tags recorded on emitted sources.
const (
	MethodNative          = "provider_native_citation"
	MethodMarkdown        = "markdown_pattern"
	MethodRawURL          = "raw_url_pattern"
	MethodNumbered        = "numbered_citation"
	MethodNumberedMapped  = "numbered_citation_with_mapping"
	MethodExplicitMention = "explicit_source_mention"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
	rawURLRe       = regexp.MustCompile(`https?://[^\s<>"\)\]]+`)
	numberedRe     = regexp.MustCompile(`\[(\d+)\]`)
	// Lead-in phrases for textual attributions. The clause runs to the end
	// of the line; sentence trimming happens in code so periods inside
	// domain names survive.
	mentionRe = regexp.MustCompile(`(?i)(?:Sources?|According to|Based on|D'après|Selon)\s*:?\s+([^\n]+)`)

	cotPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<thinking>(.*?)</thinking>`),
		regexp.MustCompile(`(?is)<reasoning>(.*?)</reasoning>`),
	}
)

// Sources derives an ordered citation list from response text and the
// provider's native citation list. Native citations are trusted verbatim
// and emitted first; the markdown and raw-URL layers are deduplicated by
// URL against everything already emitted (first occurrence wins). Numbered
// markers that index into the native list are emitted as mapped variants
// even when their URL repeats a native citation, since the marker itself is
// evidence of an in-text reference. Positions are reassigned contiguously
// from zero in emission order.
func Sources(text string, native []domain.Source) []domain.Source {
	sources := make([]domain.Source, 0, len(native))
	seen := make(map[string]bool)

	emit := func(s domain.Source) {
		s.Position = len(sources)
		s.Title = norm.NFC.String(s.Title)
		if s.URL != "" {
			seen[s.URL] = true
		}
		sources = append(sources, s)
	}

	// Layer 1: provider-native citations, verbatim.
	for _, s := range native {
		if s.Method == "" {
			s.Method = MethodNative
		}
		emit(s)
	}

	// Layer 2: markdown links [label](url).
	for _, m := range markdownLinkRe.FindAllStringSubmatch(text, -1) {
		url := trimURL(m[2])
		if seen[url] {
			continue
		}
		emit(domain.Source{
			Type:   domain.SourceMarkdownLink,
			Text:   strings.TrimSpace(m[1]),
			URL:    url,
			Method: MethodMarkdown,
		})
	}

	// Layer 3: bare URLs not captured above. URLs inside markdown links
	// match here too but are dropped by the URL dedupe.
	for _, m := range rawURLRe.FindAllString(text, -1) {
		url := trimURL(m)
		if seen[url] {
			continue
		}
		emit(domain.Source{
			Type:   domain.SourceRawURL,
			URL:    url,
			Method: MethodRawURL,
		})
	}

	// Layer 4: bracketed numeric markers, mapped to native citations when
	// the index is in range.
	for _, m := range numberedRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= len(native) {
			ref := native[n-1]
			emit(domain.Source{
				Type:           domain.SourceNumberedCitationMapped,
				CitationNumber: n,
				URL:            ref.URL,
				Title:          ref.Title,
				Method:         MethodNumberedMapped,
			})
			continue
		}
		emit(domain.Source{
			Type:           domain.SourceNumberedCitation,
			CitationNumber: n,
			Method:         MethodNumbered,
		})
	}

	// Layer 5: explicit textual attributions. Only clauses that look like
	// they name a web source are kept; no URL is guaranteed.
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		clause := trimClause(m[1])
		if !looksLikeWebSource(clause) {
			continue
		}
		emit(domain.Source{
			Type:   domain.SourceExplicitMention,
			Text:   clause,
			Method: MethodExplicitMention,
		})
	}

	return sources
}

// ChainOfThought returns the first reasoning segment bracketed by
// case-insensitive <thinking> or <reasoning> tags, or an empty string.
func ChainOfThought(text string) string {
	for _, re := range cotPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// trimURL strips whitespace and trailing sentence punctuation that the
// permissive URL pattern tends to swallow.
func trimURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), ".,;:")
}

// trimClause cuts an attribution clause at the first sentence boundary
// (". " never occurs inside a domain name) and drops a trailing period.
func trimClause(clause string) string {
	if i := strings.Index(clause, ". "); i >= 0 {
		clause = clause[:i]
	}
	return strings.TrimSuffix(strings.TrimSpace(clause), ".")
}

func looksLikeWebSource(clause string) bool {
	lower := strings.ToLower(clause)
	for _, marker := range []string{"http", "www.", ".com", ".org", ".net", ".gov", ".edu", ".fr"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
