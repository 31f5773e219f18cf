package m3u

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/alorle/iptv-playlist/internal/channel"
)

func TestEncoder_Encode(t *testing.T) {
	deriver := channel.MustNameDeriver(channel.DefaultPrefixes)

	t.Run("writes header and entries", func(t *testing.T) {
		enc := NewEncoder("https://epg.example/e.xml", "https://logo.example/tv/")

		grouped := channel.NewEntry("CCTV-5+HD", "http://a.com/5", "Sports", deriver)
		ungrouped := channel.NewEntry("Local News", "http://a.com/local,extra", "", deriver)
		enc.AddEntry(grouped)
		enc.AddEntry(ungrouped)

		want := `#EXTM3U x-tvg-url="https://epg.example/e.xml"` + "\n" +
			`#EXTINF:-1 tvg-name="CCTV5" tvg-logo="https://logo.example/tv/CCTV5.png" group-title="Sports",CCTV-5+HD` + "\n" +
			"http://a.com/5\n" +
			`#EXTINF:-1 tvg-name="Local News" tvg-logo="https://logo.example/tv/Local News.png",Local News` + "\n" +
			"http://a.com/local,extra\n"

		var buf bytes.Buffer
		if err := enc.Encode(&buf); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if buf.String() != want {
			t.Errorf("unexpected output:\ngot:\n%s\nwant:\n%s", buf.String(), want)
		}
		if enc.String() != want {
			t.Error("String() should match Encode output")
		}
		if enc.Len() != 2 {
			t.Errorf("Len() = %d, want 2", enc.Len())
		}
	})

	t.Run("empty playlist is header only", func(t *testing.T) {
		enc := NewEncoder("https://epg.example/e.xml", "")
		if got := enc.String(); got != "#EXTM3U x-tvg-url=\"https://epg.example/e.xml\"\n" {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("propagates writer errors", func(t *testing.T) {
		enc := NewEncoder("u", "l")
		if err := enc.Encode(failingWriter{}); err == nil {
			t.Fatal("expected error from failing writer")
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSplitJoinLines(t *testing.T) {
	doc := []byte("a\nb\n\nc\n")
	lines := SplitLines(doc)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if string(JoinLines(lines)) != string(doc) {
		t.Errorf("JoinLines(SplitLines(doc)) = %q, want %q", JoinLines(lines), doc)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		extinf string
		want   string
		wantOK bool
	}{
		{"plain", `#EXTINF:-1 tvg-name="A",Channel A`, "Channel A", true},
		{"comma in attribute", `#EXTINF:-1 tvg-name="A,B" group-title="X",Channel, HD`, "Channel, HD", true},
		{"no comma", `#EXTINF:-1 tvg-name="A"`, "", false},
		{"empty name", `#EXTINF:-1,`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DisplayName(tt.extinf)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("DisplayName() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAttribute(t *testing.T) {
	line := `#EXTINF:-1 tvg-name="CCTV1" tvg-logo="" group-title="CCTV-Live",CCTV-1`

	if v, ok := Attribute(line, "group-title"); !ok || v != "CCTV-Live" {
		t.Errorf("Attribute(group-title) = (%q, %v)", v, ok)
	}
	if v, ok := Attribute(line, "tvg-logo"); !ok || v != "" {
		t.Errorf("Attribute(tvg-logo) = (%q, %v)", v, ok)
	}
	if _, ok := Attribute(line, "tvg-id"); ok {
		t.Error("Attribute(tvg-id) should not be found")
	}
}

func TestRecords(t *testing.T) {
	lines := strings.Split(strings.Join([]string{
		"#EXTM3U",
		"  #EXTINF:-1,One  ",
		" http://one ",
		"#EXTINF:-1,Two",
		"#EXTINF:-1,Three",
		"http://three",
		"#EXTINF:-1,Dangling",
	}, "\n"), "\n")

	records := Records(lines)
	want := []Record{
		{Extinf: "#EXTINF:-1,One", URL: "http://one"},
		{Extinf: "#EXTINF:-1,Two", URL: "#EXTINF:-1,Three"},
	}

	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], want[i])
		}
	}
}
