package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/richinsley/gofsr/upscaler"
)

type staticStats upscaler.Stats

func (s staticStats) Stats() upscaler.Stats { return upscaler.Stats(s) }

func TestCollector(t *testing.T) {
	source := staticStats{
		State:         upscaler.Ready,
		Frames:        120,
		StageFailures: 4,
		CopyThroughs:  3,
		DirectBlits:   1,
		Degradations:  1,
		RenderWidth:   1129,
		RenderHeight:  635,
		Generation:    2,
	}

	expected := `
# HELP gofsr_fallback_total Failed frames shown through a fallback path.
# TYPE gofsr_fallback_total counter
gofsr_fallback_total{kind="copy_through"} 3
gofsr_fallback_total{kind="direct_blit"} 1
# HELP gofsr_frames_total Frames upscaled through the full pipeline.
# TYPE gofsr_frames_total counter
gofsr_frames_total 120
# HELP gofsr_render_width Render resolution width in pixels.
# TYPE gofsr_render_width gauge
gofsr_render_width 1129
`
	err := testutil.CollectAndCompare(NewCollector(source), strings.NewReader(expected),
		"gofsr_fallback_total", "gofsr_frames_total", "gofsr_render_width")
	if err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}

	if n := testutil.CollectAndCount(NewCollector(source)); n != 10 {
		t.Fatalf("expected 10 series; got %d", n)
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(staticStats{State: upscaler.Disabled, Disables: 1}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"gofsr_state 5", "gofsr_disables_total 1", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}
