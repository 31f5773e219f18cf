package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alorle/iptv-playlist/internal/sourcelist"
)

// stubStage is a Stage with configurable behavior.
type stubStage struct {
	name  string
	apply func(ctx context.Context, doc []byte) ([]byte, error)
}

func (s stubStage) Name() string { return s.name }

func (s stubStage) Apply(ctx context.Context, doc []byte) ([]byte, error) {
	return s.apply(ctx, doc)
}

func TestNewPipelineService(t *testing.T) {
	convert := newTestConvertService(t, nil, sourcelist.PolicySkip)
	filter, _ := NewFilterService(nil, "G", nil)

	if _, err := NewPipelineService(nil, nil, nil); !errors.Is(err, ErrNoStages) {
		t.Errorf("expected ErrNoStages, got %v", err)
	}
	if _, err := NewPipelineService(nil, []Stage{filter, convert}, nil); !errors.Is(err, ErrConvertNotFirst) {
		t.Errorf("expected ErrConvertNotFirst, got %v", err)
	}

	p, err := NewPipelineService(nil, []Stage{convert, filter}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(p.Stages(), ","); got != "convert,filter" {
		t.Errorf("Stages() = %q", got)
	}
}

func TestPipelineService_Run(t *testing.T) {
	t.Run("convert, rewrite and filter in one pass", func(t *testing.T) {
		src := "CCTV-Live,#genre#\n" +
			"CCTV-1,http://[2409:8087::1]:6610/ottrrs.hl.chinamobile.com/cctv1\n" +
			"Other,#genre#\n" +
			"Local,http://a.com/local\n"
		store := newDocs(map[string]string{"input.txt": src})

		convert := newTestConvertService(t, store, sourcelist.PolicySkip)
		rewrite, _ := NewRewriteService(store, "ottrrs.hl.chinamobile.com", nil)
		filter, _ := NewFilterService(store, "CCTV-Live", nil)

		p, err := NewPipelineService(store, []Stage{convert, rewrite, filter}, nil)
		if err != nil {
			t.Fatalf("failed to create pipeline: %v", err)
		}

		if err := p.Run(context.Background(), "input.txt", "output.m3u"); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := `#EXTINF:-1 tvg-name="CCTV1" tvg-logo="https://live.fanmingming.com/tv/CCTV1.png" group-title="CCTV-Live",CCTV-1` +
			"\nhttp://ottrrs.hl.chinamobile.com/cctv1"
		if got := string(store.written["output.m3u"]); got != want {
			t.Errorf("written =\n%s\nwant:\n%s", got, want)
		}
	})

	t.Run("stage failure aborts before writing", func(t *testing.T) {
		store := newDocs(map[string]string{"in": "x"})
		boom := errors.New("boom")
		calledAfter := false

		p, _ := NewPipelineService(store, []Stage{
			stubStage{name: "fail", apply: func(ctx context.Context, doc []byte) ([]byte, error) { return nil, boom }},
			stubStage{name: "after", apply: func(ctx context.Context, doc []byte) ([]byte, error) {
				calledAfter = true
				return doc, nil
			}},
		}, nil)

		err := p.Run(context.Background(), "in", "out")
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if !strings.Contains(err.Error(), "fail stage") {
			t.Errorf("error should name the failing stage: %v", err)
		}
		if calledAfter {
			t.Error("later stages should not run")
		}
		if len(store.written) != 0 {
			t.Error("nothing should be written")
		}
	})

	t.Run("stages see the previous output", func(t *testing.T) {
		store := newDocs(map[string]string{"in": "a"})
		appendStage := func(s string) Stage {
			return stubStage{name: s, apply: func(ctx context.Context, doc []byte) ([]byte, error) {
				return append(doc, s...), nil
			}}
		}

		p, _ := NewPipelineService(store, []Stage{appendStage("b"), appendStage("c")}, nil)
		if err := p.Run(context.Background(), "in", "out"); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if got := string(store.written["out"]); got != "abc" {
			t.Errorf("written = %q, want abc", got)
		}
	})
}
