package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTagDialect(t *testing.T) {
	text := `Let me check. <tool_call>{"name":"search","arguments":{"q":"weather"}}</tool_call>`
	calls, dialect, ok := Detect(text, []string{"search"}, nil)
	require.True(t, ok)
	assert.Equal(t, DialectTag, dialect)
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
}

func TestDetectWeirdtagDialect(t *testing.T) {
	text := `[TOOL_CALL name="search" args='{"q":"weather"}']`
	calls, dialect, ok := Detect(text, []string{"search"}, nil)
	require.True(t, ok)
	assert.Equal(t, DialectWeirdtag, dialect)
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
}

func TestDetectOpencodeDialect(t *testing.T) {
	text := "```tool\n{\"name\":\"search\",\"arguments\":{\"q\":\"weather\"}}\n```"
	calls, dialect, ok := Detect(text, []string{"search"}, nil)
	require.True(t, ok)
	assert.Equal(t, DialectOpencode, dialect)
	require.Len(t, calls, 1)
}

func TestDetectBareHeuristicSynthesizesEmptyArguments(t *testing.T) {
	text := "请使用 ide.read_file to get the contents"
	calls, dialect, ok := Detect(text, []string{"ide.read_file"}, nil)
	require.True(t, ok)
	assert.Equal(t, DialectBare, dialect)
	require.Len(t, calls, 1)
	assert.Equal(t, "ide.read_file", calls[0].Name)
	assert.JSONEq(t, "{}", string(calls[0].Arguments))
}

func TestDetectReturnsFalseWhenNothingMatches(t *testing.T) {
	_, _, ok := Detect("just a plain reply, nothing to see here", []string{"search"}, nil)
	assert.False(t, ok)
}

func TestDetectMockTriggerSelectsExplicitDialect(t *testing.T) {
	text := `mock-toolcall:weirdtag:{"name":"search","arguments":{"q":"x"}}`
	calls, dialect, ok := Detect(text, []string{"search"}, nil)
	require.True(t, ok)
	assert.Equal(t, DialectWeirdtag, dialect)
	require.Len(t, calls, 1)
}

func TestStripDialectMarkupRemovesTagsAndKeepsProse(t *testing.T) {
	text := `Sure thing. <tool_call>{"name":"search","arguments":{}}</tool_call>`
	stripped := StripDialectMarkup(text)
	assert.Equal(t, "Sure thing.", stripped)
}
