package channel

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoPrefixes is returned when a NameDeriver is built without brand prefixes.
var ErrNoPrefixes = errors.New("at least one name prefix is required")

// DefaultPrefixes are the channel brands whose numbered names are collapsed.
var DefaultPrefixes = []string{"CCTV", "CETV"}

// NameDeriver turns names like "CCTV-5+HD" into "CCTV5".
// The zero value leaves every name unchanged.
type NameDeriver struct {
	pattern *regexp.Regexp
}

// NewNameDeriver builds a deriver for the given brand prefixes.
func NewNameDeriver(prefixes []string) (NameDeriver, error) {
	quoted := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	if len(quoted) == 0 {
		return NameDeriver{}, ErrNoPrefixes
	}

	pattern, err := regexp.Compile(`(` + strings.Join(quoted, "|") + `)-(\d+).*`)
	if err != nil {
		return NameDeriver{}, err
	}
	return NameDeriver{pattern: pattern}, nil
}

// MustNameDeriver is like NewNameDeriver but panics on error.
func MustNameDeriver(prefixes []string) NameDeriver {
	d, err := NewNameDeriver(prefixes)
	if err != nil {
		panic(err)
	}
	return d
}

// Derive collapses the first "PREFIX-digits" occurrence into "PREFIXdigits"
// and drops everything after the digits. Text before the prefix is kept.
func (d NameDeriver) Derive(name string) string {
	if d.pattern == nil {
		return name
	}
	loc := d.pattern.FindStringSubmatchIndex(name)
	if loc == nil {
		return name
	}
	// loc[2:4] is the prefix, loc[4:6] the digits.
	return name[:loc[0]] + name[loc[2]:loc[3]] + name[loc[4]:loc[5]]
}
