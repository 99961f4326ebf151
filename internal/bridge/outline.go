package bridge

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxTitleBytes is the cleanup module's fixed title buffer (1024) minus the
// terminating NUL.
const maxTitleBytes = 1023

// OutlineEntry is one bookmark: nesting level (1 = top), target page and title.
type OutlineEntry struct {
	Level int    `json:"level"`
	Page  int    `json:"page"`
	Title string `json:"title"`
}

// ParseOutline reads "<level> <page> <title>" lines. Blank or malformed lines
// are skipped; the cleanup module would otherwise misread everything after them.
func ParseOutline(text string) []OutlineEntry {
	var entries []OutlineEntry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		entry, ok := parseOutlineLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func parseOutlineLine(line string) (OutlineEntry, bool) {
	levelField, rest := cutField(line)
	pageField, rest := cutField(rest)
	title := strings.TrimLeft(rest, " \t")

	level, err := strconv.Atoi(levelField)
	if err != nil || level < 1 {
		return OutlineEntry{}, false
	}
	page, err := strconv.Atoi(pageField)
	if err != nil || page < 1 {
		return OutlineEntry{}, false
	}
	if title == "" {
		return OutlineEntry{}, false
	}
	return OutlineEntry{Level: level, Page: page, Title: truncateTitle(title)}, true
}

// cutField splits off the first whitespace-delimited field.
func cutField(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

func truncateTitle(title string) string {
	if len(title) <= maxTitleBytes {
		return title
	}
	cut := maxTitleBytes
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return title[:cut]
}

// FormatOutline renders entries in the line format the cleanup module reads.
func FormatOutline(entries []OutlineEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(strconv.Itoa(e.Level))
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(e.Page))
		sb.WriteByte(' ')
		sb.WriteString(e.Title)
		sb.WriteByte('\n')
	}
	return sb.String()
}
