// Package sourcelist parses grouped "name,url" channel lists.
//
// A list is a sequence of lines. A line containing "#genre#" starts a new
// group ("News,#genre#"); every other non-blank line is a channel
// ("CCTV-1,http://host/stream") that belongs to the most recent group.
package sourcelist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alorle/iptv-playlist/internal/channel"
)

// GenreMarker identifies group marker lines.
const GenreMarker = "#genre#"

// ErrMissingComma is reported for channel lines without a name/link separator.
// It is the only way a channel line can be malformed: empty names or links
// still produce entries.
var ErrMissingComma = errors.New("channel line has no comma")

// MalformedPolicy decides what happens to channel lines that cannot be parsed.
type MalformedPolicy string

const (
	// PolicySkip drops malformed lines and reports them.
	PolicySkip MalformedPolicy = "skip"
	// PolicyError aborts parsing on the first malformed line.
	PolicyError MalformedPolicy = "error"
)

// ParsePolicy converts a configuration value to a MalformedPolicy.
func ParsePolicy(s string) (MalformedPolicy, error) {
	switch MalformedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicySkip, "":
		return PolicySkip, nil
	case PolicyError:
		return PolicyError, nil
	default:
		return "", fmt.Errorf("unknown malformed line policy %q (use skip or error)", s)
	}
}

// MalformedLineError describes a channel line that could not be parsed.
type MalformedLineError struct {
	Line int // 1-based
	Text string
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

// Result is the outcome of parsing a source list.
type Result struct {
	Entries   []channel.Entry
	Groups    []string
	Malformed []*MalformedLineError
}

// Parser turns source list text into channel entries.
type Parser struct {
	deriver channel.NameDeriver
	policy  MalformedPolicy
}

// NewParser creates a parser that derives names with deriver and handles
// malformed channel lines according to policy.
func NewParser(deriver channel.NameDeriver, policy MalformedPolicy) *Parser {
	if policy == "" {
		policy = PolicySkip
	}
	return &Parser{deriver: deriver, policy: policy}
}

// Parse walks the list once, threading the active group through the lines.
func (p *Parser) Parse(src []byte) (Result, error) {
	var res Result
	group := ""

	for i, raw := range strings.Split(string(src), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.Contains(line, GenreMarker) {
			group = GroupName(line)
			res.Groups = append(res.Groups, group)
			continue
		}

		entry, err := p.parseChannel(line, group)
		if err != nil {
			malformed := &MalformedLineError{Line: i + 1, Text: line, Err: err}
			if p.policy == PolicyError {
				return Result{}, malformed
			}
			res.Malformed = append(res.Malformed, malformed)
			continue
		}
		res.Entries = append(res.Entries, entry)
	}

	return res, nil
}

func (p *Parser) parseChannel(line, group string) (channel.Entry, error) {
	name, link, found := strings.Cut(line, ",")
	if !found {
		return channel.Entry{}, ErrMissingComma
	}
	return channel.NewEntry(name, link, group, p.deriver), nil
}

// GroupName extracts the group from a marker line such as "News,#genre#".
// An empty result means entries that follow have no group.
func GroupName(line string) string {
	if strings.Contains(line, ","+GenreMarker) {
		return strings.TrimSpace(strings.Replace(line, ","+GenreMarker, "", 1))
	}
	return strings.TrimSpace(strings.Replace(line, GenreMarker, "", 1))
}
