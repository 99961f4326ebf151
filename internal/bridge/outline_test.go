package bridge

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParseOutline(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []OutlineEntry
	}{
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "nested entries",
			text: "1 1 Introduction\n2 3 Background\n1 9 Results\n",
			want: []OutlineEntry{
				{Level: 1, Page: 1, Title: "Introduction"},
				{Level: 2, Page: 3, Title: "Background"},
				{Level: 1, Page: 9, Title: "Results"},
			},
		},
		{
			name: "title keeps inner spaces",
			text: "1 2 Chapter 1  Getting   Started",
			want: []OutlineEntry{{Level: 1, Page: 2, Title: "Chapter 1  Getting   Started"}},
		},
		{
			name: "crlf line endings",
			text: "1 1 摘要\r\n1 2 引言\r\n",
			want: []OutlineEntry{
				{Level: 1, Page: 1, Title: "摘要"},
				{Level: 1, Page: 2, Title: "引言"},
			},
		},
		{
			name: "malformed lines are skipped",
			text: "x 1 bad level\n1 y bad page\n1 2\n0 1 zero level\n1 -4 negative page\n\n2 5 kept\n",
			want: []OutlineEntry{{Level: 2, Page: 5, Title: "kept"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOutline(tt.text))
		})
	}
}

func TestParseOutline_TruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("目", 600) // 1800 bytes
	entries := ParseOutline("1 1 " + long)

	if assert.Len(t, entries, 1) {
		title := entries[0].Title
		assert.LessOrEqual(t, len(title), maxTitleBytes)
		assert.True(t, utf8.ValidString(title))
		assert.True(t, strings.HasPrefix(long, title))
	}
}

func TestFormatOutline(t *testing.T) {
	entries := []OutlineEntry{
		{Level: 1, Page: 1, Title: "Intro"},
		{Level: 2, Page: 4, Title: "Detail one"},
	}
	text := FormatOutline(entries)

	assert.Equal(t, "1 1 Intro\n2 4 Detail one\n", text)
	assert.Equal(t, entries, ParseOutline(text))
	assert.Equal(t, "", FormatOutline(nil))
}
