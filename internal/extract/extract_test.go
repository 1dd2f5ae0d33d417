package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

func TestSources_MarkdownLinks(t *testing.T) {
	// Given text with two markdown links
	text := "See [Example](https://example.com/a) and [Docs](https://docs.example.com/b)."

	// When extracting with no native citations
	sources := Sources(text, nil)

	// Then both links are emitted in order with contiguous positions
	require.Len(t, sources, 2, "both links should be extracted")
	assert.Equal(t, domain.SourceMarkdownLink, sources[0].Type)
	assert.Equal(t, "https://example.com/a", sources[0].URL)
	assert.Equal(t, "Example", sources[0].Text)
	assert.Equal(t, 0, sources[0].Position)
	assert.Equal(t, 1, sources[1].Position)
	assert.Equal(t, MethodMarkdown, sources[0].Method)
}

func TestSources_RawURLDedupedAgainstMarkdown(t *testing.T) {
	// Given a markdown link whose URL also appears bare in the text
	text := "Read [it](https://example.com/page). Full link: https://example.com/page"

	// When extracting
	sources := Sources(text, nil)

	// Then the URL is emitted once, via the markdown layer
	require.Len(t, sources, 1, "duplicate URL should be suppressed")
	assert.Equal(t, domain.SourceMarkdownLink, sources[0].Type)
}

func TestSources_RawURLTrailingPunctuation(t *testing.T) {
	// Given a bare URL ending a sentence
	text := "More at https://example.com/info."

	// When extracting
	sources := Sources(text, nil)

	// Then the trailing period is stripped
	require.Len(t, sources, 1)
	assert.Equal(t, "https://example.com/info", sources[0].URL)
	assert.Equal(t, domain.SourceRawURL, sources[0].Type)
}

func TestSources_NativeCitationsEmittedFirst(t *testing.T) {
	// Given a native citation and text holding a different URL
	native := []domain.Source{{
		Type:  domain.SourceNativeCitation,
		URL:   "https://native.example.com",
		Title: "Native",
	}}
	text := "And also https://other.example.com"

	// When extracting
	sources := Sources(text, native)

	// Then the native citation leads and carries the native method tag
	require.Len(t, sources, 2)
	assert.Equal(t, domain.SourceNativeCitation, sources[0].Type)
	assert.Equal(t, MethodNative, sources[0].Method)
	assert.Equal(t, 0, sources[0].Position)
	assert.Equal(t, "https://other.example.com", sources[1].URL)
}

func TestSources_NativeURLSuppressesTextLayers(t *testing.T) {
	// Given a native citation whose URL reappears as a bare URL
	native := []domain.Source{{Type: domain.SourceNativeCitation, URL: "https://example.com/a"}}
	text := "https://example.com/a"

	// When extracting
	sources := Sources(text, native)

	// Then only the native entry survives
	require.Len(t, sources, 1)
	assert.Equal(t, domain.SourceNativeCitation, sources[0].Type)
}

func TestSources_NumberedCitationMapped(t *testing.T) {
	// Given two native citations and a [2] marker referencing the second
	native := []domain.Source{
		{Type: domain.SourceNativeCitation, URL: "https://a.example.com", Title: "A"},
		{Type: domain.SourceNativeCitation, URL: "https://b.example.com", Title: "B"},
	}
	text := "The key finding [2] is well documented."

	// When extracting
	sources := Sources(text, native)

	// Then the marker is emitted as a mapped citation even though its URL
	// duplicates a native entry
	require.Len(t, sources, 3, "mapped marker should be emitted alongside natives")
	mapped := sources[2]
	assert.Equal(t, domain.SourceNumberedCitationMapped, mapped.Type)
	assert.Equal(t, 2, mapped.CitationNumber)
	assert.Equal(t, "https://b.example.com", mapped.URL)
	assert.Equal(t, "B", mapped.Title)
	assert.Equal(t, MethodNumberedMapped, mapped.Method)
}

func TestSources_NumberedCitationUnmapped(t *testing.T) {
	// Given a [3] marker with no native citations to map into
	text := "As shown in [3]."

	// When extracting
	sources := Sources(text, nil)

	// Then a bare numbered citation is emitted without a URL
	require.Len(t, sources, 1)
	assert.Equal(t, domain.SourceNumberedCitation, sources[0].Type)
	assert.Equal(t, 3, sources[0].CitationNumber)
	assert.Empty(t, sources[0].URL)
}

func TestSources_ExplicitMentionKeptOnlyForWebSources(t *testing.T) {
	// Given one attribution naming a site and one naming a person
	text := "According to example.com, demand rose.\nAccording to my colleague, it fell."

	// When extracting
	sources := Sources(text, nil)

	// Then only the web-looking clause is kept
	require.Len(t, sources, 1)
	assert.Equal(t, domain.SourceExplicitMention, sources[0].Type)
	assert.Contains(t, sources[0].Text, "example.com")
}

func TestSources_FrenchAttributionPhrases(t *testing.T) {
	// Given a French attribution naming a site
	text := "D'après lemonde.fr, la tendance se confirme."

	// When extracting
	sources := Sources(text, nil)

	// Then the clause is recognized
	require.Len(t, sources, 1)
	assert.Equal(t, domain.SourceExplicitMention, sources[0].Type)
}

func TestSources_EmptyText(t *testing.T) {
	// Given empty text and no native citations
	sources := Sources("", nil)

	// Then the result is empty but non-nil
	require.NotNil(t, sources)
	assert.Empty(t, sources)
}

func TestSources_Deterministic(t *testing.T) {
	// Given a mixed response
	native := []domain.Source{{Type: domain.SourceNativeCitation, URL: "https://n.example.com"}}
	text := "See [A](https://a.example.com) and [1], more at https://b.example.com."

	// When extracting twice
	first := Sources(text, native)
	second := Sources(text, native)

	// Then the output is identical
	assert.Equal(t, first, second, "extraction should be deterministic")
}

func TestChainOfThought_ThinkingTags(t *testing.T) {
	// Given a response with a thinking block
	text := "<thinking>\nstep one\nstep two\n</thinking>\nThe answer is 4."

	// When extracting
	cot := ChainOfThought(text)

	// Then the trimmed block content is returned
	assert.Equal(t, "step one\nstep two", cot)
}

func TestChainOfThought_ReasoningTagsCaseInsensitive(t *testing.T) {
	// Given uppercase reasoning tags
	text := "<REASONING>because</REASONING> answer"

	// When extracting
	cot := ChainOfThought(text)

	// Then the block is still found
	assert.Equal(t, "because", cot)
}

func TestChainOfThought_Absent(t *testing.T) {
	// Given a response with no reasoning tags
	cot := ChainOfThought("plain answer")

	// Then the result is empty
	assert.Empty(t, cot)
}
