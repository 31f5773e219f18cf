package m3u

import (
	"fmt"
	"io"
)

// TVGTags are the player attributes of an #EXTINF line.
// Empty fields are omitted, except Name which players use for guide matching.
type TVGTags struct {
	Name       string
	Logo       string
	GroupTitle string
}

func (t *TVGTags) encode(w io.Writer) error {
	if _, err := fmt.Fprintf(w, " tvg-name=\"%s\"", t.Name); err != nil {
		return err
	}

	if t.Logo != "" {
		if _, err := fmt.Fprintf(w, " tvg-logo=\"%s\"", t.Logo); err != nil {
			return err
		}
	}

	if t.GroupTitle != "" {
		if _, err := fmt.Fprintf(w, " group-title=\"%s\"", t.GroupTitle); err != nil {
			return err
		}
	}

	return nil
}
