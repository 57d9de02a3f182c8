package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeywordExtractorTechEntities(t *testing.T) {
	ext := NewKeywordExtractor()

	entities, relationships := ext.Extract("I love Python and Docker", "user", true)

	names := make(map[string]string)
	for _, e := range entities {
		names[e.Name] = e.Type
	}
	require.Equal(t, "technology", names["Python"])
	require.Equal(t, "technology", names["Docker"])

	found := false
	for _, rel := range relationships {
		if rel.Type != "mentioned_with" {
			continue
		}
		if (rel.SourceName == "Python" && rel.TargetName == "Docker") ||
			(rel.SourceName == "Docker" && rel.TargetName == "Python") {
			require.Equal(t, 1.0, rel.Weight)
			found = true
		}
	}
	require.True(t, found, "expected a mentioned_with edge between Python and Docker")
}

func TestKeywordExtractorWholeWordMatching(t *testing.T) {
	ext := NewKeywordExtractor()

	entities, _ := ext.Extract("Google uses golang internally", "user", false)
	for _, e := range entities {
		require.NotEqual(t, "Go", e.Name, "Go must not match inside other words")
	}

	entities, _ = ext.Extract("We ship Go services on Linux", "user", false)
	var got []string
	for _, e := range entities {
		got = append(got, e.Name)
	}
	require.Contains(t, got, "Go")
	require.Contains(t, got, "Linux")
}

func TestKeywordExtractorCaseInsensitiveDedup(t *testing.T) {
	ext := NewKeywordExtractor()

	entities, _ := ext.Extract("docker DOCKER Docker", "user", false)
	require.Len(t, entities, 1)
	require.Equal(t, "Docker", entities[0].Name)
}

func TestKeywordExtractorMethodAndCJK(t *testing.T) {
	ext := NewKeywordExtractor()

	entities, _ := ext.Extract("调用 read_csv(path) 做数据分析", "user", false)

	types := make(map[string]string)
	for _, e := range entities {
		types[e.Name] = e.Type
	}
	require.Equal(t, "method", types["read_csv"])
	require.Equal(t, "concept", types["数据分析"])
}

func TestKeywordExtractorNeverEmitsEmptyFields(t *testing.T) {
	inputs := []string{
		"I love Python and Docker",
		"随便聊聊前端和后端的架构",
		"call foo() then bar(x, y)",
		"nothing matches here at all",
		"   ",
	}
	ext := NewKeywordExtractor()
	for _, input := range inputs {
		entities, _ := ext.Extract(input, "assistant", true)
		seen := make(map[string]bool)
		for _, e := range entities {
			require.NotEmpty(t, e.Name)
			require.NotEmpty(t, e.Type)
			key := strings.ToLower(e.Name)
			require.False(t, seen[key], "duplicate case-insensitive name %q", e.Name)
			seen[key] = true
		}
	}
}

func TestWindowRelationships(t *testing.T) {
	entities := []Entity{
		{Type: "technology", Name: "A"},
		{Type: "technology", Name: "B"},
		{Type: "technology", Name: "C"},
		{Type: "technology", Name: "D"},
	}
	rels := windowRelationships(entities)

	type pair struct{ src, dst string }
	want := []pair{
		{"A", "B"}, {"A", "C"},
		{"B", "C"}, {"B", "D"},
		{"C", "D"},
	}
	require.Len(t, rels, len(want))
	for i, rel := range rels {
		require.Equal(t, want[i].src, rel.SourceName)
		require.Equal(t, want[i].dst, rel.TargetName)
		require.Equal(t, "mentioned_with", rel.Type)
		require.Equal(t, 1.0, rel.Weight)
	}
}

func TestNewFallsBackToKeyword(t *testing.T) {
	ext := New(StrategyKeyword)
	require.Equal(t, StrategyKeyword, ext.Name())
}
