package m3u

import (
	"fmt"
	"io"
	"strings"

	"github.com/alorle/iptv-playlist/internal/channel"
)

// Encoder writes channel entries as an extended M3U playlist.
type Encoder struct {
	guideURL    string
	logoBaseURL string
	items       []*Channel
}

// NewEncoder returns an encoder whose header points at guideURL and whose
// logos are resolved against logoBaseURL.
func NewEncoder(guideURL, logoBaseURL string) *Encoder {
	return &Encoder{guideURL: guideURL, logoBaseURL: logoBaseURL, items: []*Channel{}}
}

// AddEntry appends a domain entry to the playlist.
func (p *Encoder) AddEntry(e channel.Entry) {
	p.items = append(p.items, &Channel{
		Title: e.OriginalName(),
		URI:   e.Link(),
		TVGTags: &TVGTags{
			Name:       e.DerivedName(),
			Logo:       p.logoBaseURL + e.DerivedName() + ".png",
			GroupTitle: e.Group(),
		},
	})
}

// Len returns the number of entries added so far.
func (p *Encoder) Len() int {
	return len(p.items)
}

// Encode writes the header and every entry. Each line ends with "\n".
func (p *Encoder) Encode(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s x-tvg-url=\"%s\"\n", HeaderTag, p.guideURL); err != nil {
		return err
	}

	for _, item := range p.items {
		if err := item.encode(w); err != nil {
			return err
		}
	}

	return nil
}

// String renders the playlist.
func (p *Encoder) String() string {
	var sb strings.Builder
	// strings.Builder never fails to write.
	_ = p.Encode(&sb)
	return sb.String()
}
