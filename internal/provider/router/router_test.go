package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sable-dev/sable/internal/provider"
)

type stubProvider struct {
	name      string
	available bool
	models    []provider.ModelInfo
	reply     string
	err       error
	calls     int
}

func (s *stubProvider) Ask(ctx context.Context, req *provider.AskRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubProvider) Name() string                { return s.name }
func (s *stubProvider) Available() bool             { return s.available }
func (s *stubProvider) Models() []provider.ModelInfo { return s.models }
func (s *stubProvider) SystemPrompt() string        { return "" }

func codeModel(id string) provider.ModelInfo {
	return provider.ModelInfo{ID: id, Name: id, ContextSize: 128000,
		Capabilities: []string{"code", "reasoning"}}
}

func fastModel(id string) provider.ModelInfo {
	return provider.ModelInfo{ID: id, Name: id, ContextSize: 32000,
		Capabilities: []string{"fast"}}
}

func newTestRouter(t *testing.T, provs ...*stubProvider) *Router {
	t.Helper()
	r := New()
	for i, p := range provs {
		err := r.Register(p, provider.Descriptor{
			Name:     p.name,
			Priority: len(provs) - i,
			Enabled:  true,
		})
		if err != nil {
			t.Fatalf("register %s: %v", p.name, err)
		}
	}
	return r
}

func TestSelectCapabilityMatch(t *testing.T) {
	fast := &stubProvider{name: "fast", available: true, models: []provider.ModelInfo{fastModel("quick-1")}}
	smart := &stubProvider{name: "smart", available: true, models: []provider.ModelInfo{codeModel("big-1")}}
	r := newTestRouter(t, fast, smart)

	name, err := r.Select(&SelectContext{RequiredCapabilities: []string{"code", "reasoning"}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "smart" {
		t.Errorf("expected smart, got %s", name)
	}
}

func TestSelectFastPathNeedsSamples(t *testing.T) {
	a := &stubProvider{name: "a", available: true, models: []provider.ModelInfo{codeModel("a-1")}}
	b := &stubProvider{name: "b", available: true, models: []provider.ModelInfo{codeModel("b-1")}}
	r := newTestRouter(t, a, b)

	// No samples anywhere: fast-path declines, priority fallback picks a.
	name, err := r.Select(&SelectContext{Complexity: ComplexityLow})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "a" {
		t.Errorf("expected priority fallback to a, got %s", name)
	}

	// b earns three fast samples; a stays slow with three.
	for i := 0; i < 3; i++ {
		r.Record("b", true, 100*time.Millisecond)
		r.Record("a", true, 3*time.Second)
	}
	name, err = r.Select(&SelectContext{Complexity: ComplexityLow})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "b" {
		t.Errorf("expected fast-path to b, got %s", name)
	}
}

func TestSelectPriorityFallbackSkipsUnavailable(t *testing.T) {
	down := &stubProvider{name: "down", available: false, models: []provider.ModelInfo{codeModel("d-1")}}
	up := &stubProvider{name: "up", available: true, models: []provider.ModelInfo{codeModel("u-1")}}
	r := newTestRouter(t, down, up)

	name, err := r.Select(nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if name != "up" {
		t.Errorf("expected up, got %s", name)
	}
}

func TestSelectNoProvider(t *testing.T) {
	r := New()
	if _, err := r.Select(nil); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestAskFailoverExactlyOnce(t *testing.T) {
	failing := &stubProvider{
		name: "primary", available: true,
		models: []provider.ModelInfo{codeModel("p-1")},
		err:    &provider.BackendError{Provider: "primary", Reason: provider.ReasonRejected, Cause: errors.New("boom")},
	}
	backup := &stubProvider{
		name: "backup", available: true,
		models: []provider.ModelInfo{codeModel("b-1")},
		reply:  "ok",
	}
	r := newTestRouter(t, failing, backup)

	text, err := r.Ask(context.Background(), "", &provider.AskRequest{Prompt: "hi"}, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected backup reply, got %q", text)
	}
	if failing.calls != 1 || backup.calls != 1 {
		t.Errorf("expected one call each, got primary=%d backup=%d", failing.calls, backup.calls)
	}

	stats := r.Stats()
	if stats["primary"].Failures != 1 {
		t.Errorf("primary failures = %d, want 1", stats["primary"].Failures)
	}
	if stats["backup"].Successes != 1 {
		t.Errorf("backup successes = %d, want 1", stats["backup"].Successes)
	}
}

func TestAskExplicitProviderNoFailover(t *testing.T) {
	failing := &stubProvider{
		name: "primary", available: true,
		models: []provider.ModelInfo{codeModel("p-1")},
		err:    &provider.BackendError{Provider: "primary", Reason: provider.ReasonTimeout},
	}
	backup := &stubProvider{name: "backup", available: true,
		models: []provider.ModelInfo{codeModel("b-1")}, reply: "ok"}
	r := newTestRouter(t, failing, backup)

	_, err := r.Ask(context.Background(), "primary", &provider.AskRequest{Prompt: "hi"}, nil)
	if err == nil {
		t.Fatal("expected error from explicit provider")
	}
	if backup.calls != 0 {
		t.Errorf("backup should not be tried on explicit routing, calls=%d", backup.calls)
	}
}

func TestAskBothFail(t *testing.T) {
	mk := func(name string) *stubProvider {
		return &stubProvider{
			name: name, available: true,
			models: []provider.ModelInfo{codeModel(name + "-1")},
			err:    &provider.BackendError{Provider: name, Reason: provider.ReasonRejected},
		}
	}
	a, b := mk("a"), mk("b")
	r := newTestRouter(t, a, b)

	_, err := r.Ask(context.Background(), "", &provider.AskRequest{Prompt: "hi"}, nil)
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	if a.calls+b.calls != 2 {
		t.Errorf("expected exactly two attempts total, got %d", a.calls+b.calls)
	}
}

func TestScore(t *testing.T) {
	now := time.Now()

	perfect := MetricsSnapshot{Total: 10, Successes: 10, AvgSeconds: 1.0, LastRequest: now}
	if got := perfect.Score(now); got != 110 {
		t.Errorf("perfect score = %v, want 110", got)
	}

	slow := MetricsSnapshot{Total: 10, Successes: 10, AvgSeconds: 5.0, LastRequest: now}
	if got := slow.Score(now); got != 80 {
		t.Errorf("slow score = %v, want 80", got)
	}

	stale := MetricsSnapshot{Total: 10, Successes: 10, AvgSeconds: 1.0,
		LastRequest: now.Add(-48 * time.Hour)}
	if got := stale.Score(now); got != 95 {
		t.Errorf("stale score = %v, want 95", got)
	}

	flaky := MetricsSnapshot{Total: 10, Successes: 5, Failures: 5, AvgSeconds: 1.0, LastRequest: now}
	// 50 + 10 - 25
	if got := flaky.Score(now); got != 35 {
		t.Errorf("flaky score = %v, want 35", got)
	}
}

func TestSwitchProviderValidation(t *testing.T) {
	up := &stubProvider{name: "up", available: true, models: []provider.ModelInfo{codeModel("u-1")}}
	down := &stubProvider{name: "down", available: false, models: []provider.ModelInfo{codeModel("d-1")}}
	r := newTestRouter(t, up, down)

	if err := r.SwitchProvider("missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if err := r.SwitchProvider("down"); err == nil {
		t.Error("expected error for unavailable provider")
	}
	if err := r.SwitchProvider("up"); err != nil {
		t.Errorf("switch to up: %v", err)
	}
	if r.Default() != "up" {
		t.Errorf("default = %s, want up", r.Default())
	}
}

func TestSwitchModel(t *testing.T) {
	p := &stubProvider{name: "p", available: true,
		models: []provider.ModelInfo{codeModel("m-1"), codeModel("m-2")}}
	r := newTestRouter(t, p)

	if err := r.SwitchModel("m-2", "p"); err != nil {
		t.Fatalf("switch model: %v", err)
	}
	if got := r.CurrentModel("p"); got != "m-2" {
		t.Errorf("current model = %s, want m-2", got)
	}
	if err := r.SwitchModel("nope", "p"); err == nil {
		t.Error("expected error for unknown model")
	}
	if err := r.SwitchModel("m-1", ""); err != nil {
		t.Errorf("switch model without provider: %v", err)
	}
}

func TestRecommend(t *testing.T) {
	smart := &stubProvider{name: "smart", available: true,
		models: []provider.ModelInfo{codeModel("big-1")}}
	quick := &stubProvider{name: "quick", available: true,
		models: []provider.ModelInfo{fastModel("small-1")}}
	r := newTestRouter(t, smart, quick)

	rec, err := r.Recommend("analyze this func main() and explain the bug")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Provider != "smart" || rec.Confidence != 0.8 {
		t.Errorf("code analysis: got %+v", rec)
	}

	rec, err = r.Recommend("what is a goroutine")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Provider != "quick" || rec.Confidence != 0.6 {
		t.Errorf("simple lookup: got %+v", rec)
	}

	rec, err = r.Recommend("please create a parser for this configuration format with full test coverage")
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.Provider != "smart" || rec.Confidence != 0.7 {
		t.Errorf("generation: got %+v", rec)
	}
}
