// Package m3u reads and writes extended M3U playlists at the line level.
package m3u

import (
	"regexp"
	"strings"
)

const (
	// HeaderTag opens every extended playlist.
	HeaderTag = "#EXTM3U"
	// ExtinfPrefix opens every entry metadata line.
	ExtinfPrefix = "#EXTINF:"
)

// SplitLines splits a document on "\n". A trailing newline yields a final
// empty line, so JoinLines(SplitLines(doc)) == doc.
func SplitLines(doc []byte) []string {
	return strings.Split(string(doc), "\n")
}

// JoinLines joins lines with "\n" separators.
func JoinLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

// IsExtinf reports whether line is an entry metadata line.
func IsExtinf(line string) bool {
	return strings.HasPrefix(line, ExtinfPrefix)
}

// DisplayName returns the text after the first comma that is not inside a
// double-quoted attribute value. ok is false when there is no such comma.
func DisplayName(extinf string) (name string, ok bool) {
	inQuotes := false
	for i := 0; i < len(extinf); i++ {
		switch extinf[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return extinf[i+1:], true
			}
		}
	}
	return "", false
}

var attributeRegex = regexp.MustCompile(`([a-zA-Z0-9-]+)="([^"]*)"`)

// Attribute returns the value of a key="value" attribute on an #EXTINF line.
func Attribute(extinf, name string) (string, bool) {
	for _, m := range attributeRegex.FindAllStringSubmatch(extinf, -1) {
		if m[1] == name {
			return m[2], true
		}
	}
	return "", false
}

// Record is an #EXTINF line paired with the line that follows it.
type Record struct {
	Extinf string
	URL    string
}

// Records pairs every #EXTINF line with its following line. Both lines are
// trimmed. An #EXTINF on the last line has no URL and is dropped, and the
// line after a paired #EXTINF is never considered as a record start.
func Records(lines []string) []Record {
	var records []Record
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !IsExtinf(line) || i+1 >= len(lines) {
			continue
		}
		records = append(records, Record{
			Extinf: line,
			URL:    strings.TrimSpace(lines[i+1]),
		})
		i++
	}
	return records
}
