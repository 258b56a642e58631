package generate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/longform-ai/longform/pkg/cache"
	"github.com/longform-ai/longform/pkg/config"
	"github.com/longform-ai/longform/pkg/health"
	"github.com/longform-ai/longform/pkg/llm"
	"github.com/longform-ai/longform/pkg/models"
)

// fakeClient returns queued responses in order and records the prompts it
// was called with.
type fakeClient struct {
	mu        sync.Mutex
	prompts   []string
	responses []fakeResponse
}

type fakeResponse struct {
	res llm.CallResult
	err error
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, params models.GenerationParams) (llm.CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.responses) == 0 {
		return llm.CallResult{}, &llm.ServiceError{StatusCode: 500, Message: "no response queued"}
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.res, next.err
}

func fastBackoff(t *testing.T) {
	t.Helper()
	old := backoffSchedule
	backoffSchedule = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { backoffSchedule = old })
}

func newTestGenerator(t *testing.T, client llm.Client) (*Generator, *cache.Cache) {
	t.Helper()
	fastBackoff(t)

	cfg := config.Default()
	cfg.Throttle.Cooldown = time.Millisecond
	cfg.Generation.RateLimitDelay = time.Millisecond

	c, err := cache.New(t.TempDir(), time.Hour, time.Second, cache.NewMemLocker())
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	mon := health.NewMonitor(health.Thresholds{ErrorThreshold: 10, CPUHighWater: 95, MemoryHighWater: 90}, nil)
	return New(cfg, c, mon, client), c
}

// words builds a text with exactly n whitespace-separated words.
func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

// passing wraps narration in a response whose validation block passes.
func passing(narration string) string {
	return narration + "\n\n---VALIDATION---\nopening_hook_present: true\nclosing_handoff_present: true\n"
}

// hookless wraps narration in a response whose validation block reports
// missing structural elements.
func hookless(narration string) string {
	return narration + "\n\n---VALIDATION---\nopening_hook_present: false\nclosing_handoff_present: false\n"
}

func testRequest(target, tolerance int) models.GenerationRequest {
	return models.GenerationRequest{
		Prompt:       "narrate the siege",
		TargetWords:  target,
		TolerancePct: tolerance,
		Params:       models.GenerationParams{Model: "test-model", Temperature: 0.3, MaxTokens: 8000},
	}
}

func TestSegmentFirstAttemptSuccess(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{res: llm.CallResult{Text: passing(words(500))}},
	}}
	g, c := newTestGenerator(t, client)

	res := g.Segment(context.Background(), 0, testRequest(500, 3))
	if res.Status != models.StatusSuccess {
		t.Fatalf("Status = %q, want success (%s)", res.Status, res.ErrorMessage)
	}
	if res.Origin != models.OriginFresh {
		t.Errorf("Origin = %q", res.Origin)
	}
	if res.FinalWordCount != 500 {
		t.Errorf("FinalWordCount = %d", res.FinalWordCount)
	}
	if len(res.Attempts) != 1 || !res.Attempts[0].Accepted {
		t.Errorf("Attempts = %+v", res.Attempts)
	}

	if _, ok := c.Get("narrate the siege", testRequest(500, 3).Params); !ok {
		t.Error("accepted artifact not cached")
	}
}

func TestSegmentRepairThenSuccess(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{res: llm.CallResult{Text: passing(words(90))}},
		{res: llm.CallResult{Text: passing(words(100))}},
	}}
	g, _ := newTestGenerator(t, client)

	req := testRequest(100, 3)
	req.RepairTemplate = "Repair per issues:\n{ISSUE_LIST}"
	req.Topic = "the siege"

	res := g.Segment(context.Background(), 2, req)
	if res.Status != models.StatusSuccess {
		t.Fatalf("Status = %q", res.Status)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d", len(res.Attempts))
	}
	if res.Attempts[0].Accepted || !res.Attempts[1].Accepted {
		t.Errorf("acceptance flags = %v %v", res.Attempts[0].Accepted, res.Attempts[1].Accepted)
	}

	repair := client.prompts[1]
	if !strings.Contains(repair, "word count 90 outside required range 97-103") {
		t.Errorf("repair prompt missing issue: %q", repair)
	}
	if !strings.Contains(repair, "Previous output:") {
		t.Error("repair prompt missing previous output")
	}
	if !strings.HasPrefix(repair, "Stay strictly on the assigned topic: the siege") {
		t.Error("repair prompt missing topic prefix")
	}
}

func TestSegmentBestOfN(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{res: llm.CallResult{Text: hookless(words(420))}},
		{res: llm.CallResult{Text: hookless(words(610))}},
		{res: llm.CallResult{Text: hookless(words(505))}},
	}}
	g, c := newTestGenerator(t, client)

	res := g.Segment(context.Background(), 1, testRequest(500, 3))
	if res.Status != models.StatusWarning {
		t.Fatalf("Status = %q", res.Status)
	}
	if res.FinalWordCount != 505 {
		t.Errorf("best candidate word count = %d, want 505", res.FinalWordCount)
	}
	if len(res.Attempts) != 3 {
		t.Errorf("attempts = %d", len(res.Attempts))
	}

	// Rejected outputs are never cached.
	if _, ok := c.Get("narrate the siege", testRequest(500, 3).Params); ok {
		t.Error("rejected artifact ended up in cache")
	}
}

func TestSegmentCachedHit(t *testing.T) {
	client := &fakeClient{}
	g, c := newTestGenerator(t, client)

	req := testRequest(500, 3)
	if err := c.Set(req.Prompt, req.Params, words(500)); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	res := g.Segment(context.Background(), 0, req)
	if res.Status != models.StatusCached {
		t.Fatalf("Status = %q", res.Status)
	}
	if res.Origin != models.OriginCacheHit {
		t.Errorf("Origin = %q", res.Origin)
	}
	if len(client.prompts) != 0 {
		t.Errorf("cache hit still made %d calls", len(client.prompts))
	}
}

func TestSegmentCachedOutsideWindowKeepsEntry(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{res: llm.CallResult{Text: hookless(words(850))}},
		{res: llm.CallResult{Text: hookless(words(850))}},
		{res: llm.CallResult{Text: hookless(words(850))}},
	}}
	g, c := newTestGenerator(t, client)

	// Cached under the same fingerprint, but sized for a different window.
	base := testRequest(900, 3)
	if err := c.Set(base.Prompt, base.Params, words(500)); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	res := g.Segment(context.Background(), 0, base)
	if res.Origin != models.OriginFresh {
		t.Errorf("Origin = %q, want fresh call after window mismatch", res.Origin)
	}
	if len(client.prompts) == 0 {
		t.Fatal("window mismatch did not trigger a fresh call")
	}

	// The mismatched entry stays for requests with other windows.
	text, ok := c.Get(base.Prompt, base.Params)
	if !ok || WordCount(text) != 500 {
		t.Errorf("seeded entry gone or replaced: ok=%v words=%d", ok, WordCount(text))
	}
}

func TestSegmentSuccessCachesCurrentPromptVariant(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{res: llm.CallResult{Text: passing(words(90))}},
		{res: llm.CallResult{Text: passing(words(100))}},
	}}
	g, c := newTestGenerator(t, client)

	req := testRequest(100, 3)
	res := g.Segment(context.Background(), 0, req)
	if res.Status != models.StatusSuccess {
		t.Fatalf("Status = %q", res.Status)
	}

	// Attempt 2 succeeded with the repair prompt, so that is the cached key.
	if _, ok := c.Get(client.prompts[1], req.Params); !ok {
		t.Error("winning prompt variant not cached")
	}
	if _, ok := c.Get(req.Prompt, req.Params); ok {
		t.Error("base prompt cached despite losing attempt")
	}
}

func TestSegmentAllCallsFail(t *testing.T) {
	client := &fakeClient{}
	g, _ := newTestGenerator(t, client)

	res := g.Segment(context.Background(), 0, testRequest(500, 3))
	if res.Status != models.StatusError {
		t.Fatalf("Status = %q", res.Status)
	}
	if res.ErrorMessage == "" {
		t.Error("ErrorMessage empty")
	}
	if res.FinalText != "" {
		t.Error("FinalText set on hard error")
	}
}

func TestSegmentTruncationTriggersRepair(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{res: llm.CallResult{Text: passing(words(500)), Truncated: true}},
		{res: llm.CallResult{Text: passing(words(500))}},
	}}
	g, _ := newTestGenerator(t, client)

	res := g.Segment(context.Background(), 0, testRequest(500, 3))
	if res.Status != models.StatusSuccess {
		t.Fatalf("Status = %q", res.Status)
	}
	if !res.Attempts[0].Truncated || res.Attempts[0].Accepted {
		t.Errorf("first attempt = %+v", res.Attempts[0])
	}
}

func TestFuseEpisode(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{res: llm.CallResult{Text: "merged narration"}},
	}}
	g, _ := newTestGenerator(t, client)

	segments := []models.Result{
		{SegmentIndex: 0, FinalText: "first part", Status: models.StatusSuccess},
		{SegmentIndex: 1, FinalText: "second part", Status: models.StatusWarning},
	}
	er := g.FuseEpisode(context.Background(), "ep01", segments)
	if er.FuseStatus != models.StatusSuccess {
		t.Fatalf("FuseStatus = %q", er.FuseStatus)
	}
	if er.FusedText != "merged narration" {
		t.Errorf("FusedText = %q", er.FusedText)
	}

	prompt := client.prompts[0]
	if !strings.Contains(prompt, "first part\n\n---SEGMENT---\n\nsecond part") {
		t.Errorf("fusion prompt = %q", prompt)
	}
}

func TestFuseEpisodeFallback(t *testing.T) {
	client := &fakeClient{}
	g, _ := newTestGenerator(t, client)

	segments := []models.Result{
		{FinalText: "alpha"},
		{FinalText: "beta"},
	}
	er := g.FuseEpisode(context.Background(), "ep02", segments)
	if er.FuseStatus != models.StatusWarning {
		t.Fatalf("FuseStatus = %q", er.FuseStatus)
	}
	if er.FusedText != "alpha\n\nbeta" {
		t.Errorf("FusedText = %q", er.FusedText)
	}
}

func TestFuseEpisodeSingleSegment(t *testing.T) {
	client := &fakeClient{}
	g, _ := newTestGenerator(t, client)

	er := g.FuseEpisode(context.Background(), "ep03", []models.Result{{FinalText: "only one"}})
	if er.FuseStatus != models.StatusSuccess {
		t.Fatalf("FuseStatus = %q", er.FuseStatus)
	}
	if er.FusedText != "only one" {
		t.Errorf("FusedText = %q", er.FusedText)
	}
	if len(client.prompts) != 0 {
		t.Error("single segment should not call the service")
	}
}
