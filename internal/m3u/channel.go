package m3u

import (
	"fmt"
	"io"
)

// Channel is one #EXTINF entry followed by its stream URI.
type Channel struct {
	Title    string
	URI      string
	Duration int
	TVGTags  *TVGTags
}

func (pi *Channel) encode(w io.Writer) error {
	duration := pi.Duration
	if duration == 0 {
		duration = -1
	}
	if _, err := fmt.Fprintf(w, "%s%d", ExtinfPrefix, duration); err != nil {
		return err
	}

	if pi.TVGTags != nil {
		if err := pi.TVGTags.encode(w); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, ",%s\n%s\n", pi.Title, pi.URI); err != nil {
		return err
	}

	return nil
}
