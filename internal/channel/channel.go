package channel

import "strings"

// Entry represents one channel of a source list in the domain.
// It carries the name as written in the source, the normalized name used for
// guide and logo lookups, the active group and the stream link.
type Entry struct {
	originalName string
	derivedName  string
	group        string
	link         string
}

// NewEntry creates a new Entry from a source list line split into name and link.
// Name, link and group are trimmed; an empty group means the entry has no group.
// An empty name or link is kept as is: the line still becomes a playlist entry.
func NewEntry(originalName, link, group string, deriver NameDeriver) Entry {
	name := strings.TrimSpace(originalName)
	return Entry{
		originalName: name,
		derivedName:  deriver.Derive(name),
		group:        strings.TrimSpace(group),
		link:         strings.TrimSpace(link),
	}
}

// OriginalName returns the channel name as it appeared in the source list.
func (e Entry) OriginalName() string {
	return e.originalName
}

// DerivedName returns the normalized channel name.
func (e Entry) DerivedName() string {
	return e.derivedName
}

// Group returns the group the entry belongs to, or "" when it has none.
func (e Entry) Group() string {
	return e.group
}

// HasGroup reports whether a group marker preceded the entry.
func (e Entry) HasGroup() bool {
	return e.group != ""
}

// Link returns the stream link.
func (e Entry) Link() string {
	return e.link
}
