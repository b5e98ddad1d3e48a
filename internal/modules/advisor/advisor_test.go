// README: Conversation engine tests (dialogue flow + invalid input recovery).
package advisor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"traveladvisor/internal/ai"
	"traveladvisor/internal/chat"
	"traveladvisor/internal/config"
	"traveladvisor/internal/maps"
	"traveladvisor/internal/messages"
	"traveladvisor/internal/types"
)

// TestCanTransition verifies the dialogue transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Stage
		want     bool
	}{
		// happy-path forward transitions
		{StageIdle, StageRequestStarted, true},
		{StageRequestStarted, StageOriginSelected, true},
		{StageOriginSelected, StageDestinationSelected, true},
		{StageDestinationSelected, StageRunning, true},
		// disambiguation forks
		{StageRequestStarted, StageOriginSupplied, true},
		{StageOriginSupplied, StageOriginSelected, true},
		{StageOriginSelected, StageDestinationSupplied, true},
		{StageDestinationSupplied, StageDestinationSelected, true},
		// invalid: skipping steps
		{StageRequestStarted, StageDestinationSelected, false},
		{StageRequestStarted, StageRunning, false},
		{StageOriginSupplied, StageDestinationSupplied, false},
		// invalid: running is terminal within the stage machine
		{StageRunning, StageRequestStarted, false},
		// invalid: backwards
		{StageDestinationSelected, StageOriginSelected, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

// --- fakes ---

type fakeResolver struct {
	mu      sync.Mutex
	results map[string][]maps.Place
	calls   int
}

func (f *fakeResolver) Resolve(_ context.Context, text string) ([]maps.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results[text], nil
}

type fakeMetrics struct {
	mu sync.Mutex
	// fn maps the 1-based call number to the returned estimate.
	fn    func(call int) (maps.Estimate, error)
	calls int
}

func (f *fakeMetrics) Measure(_ context.Context, _, _ types.Point) (maps.Estimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fn(f.calls)
}

func (f *fakeMetrics) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) Send(_ context.Context, _ types.ID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeNotifier) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeIdentity struct{}

func (fakeIdentity) DisplayName(_ context.Context, _ types.ID) (string, error) {
	return "jane", nil
}

// fakeClassifier matches exact phrases; everything else is IntentNone,
// mirroring the degraded path a missing backend takes.
type fakeClassifier struct{}

func (fakeClassifier) Classify(_ context.Context, text string) (ai.Intent, error) {
	switch text {
	case "hello":
		return ai.IntentGreeting, nil
	case "when should i leave":
		return ai.IntentLeaveQuery, nil
	case "cancel":
		return ai.IntentCancelRequest, nil
	}
	return ai.IntentNone, nil
}

func place(addr string) maps.Place {
	return maps.Place{Address: addr, Location: types.Point{Lat: 50.0, Lng: 8.2}}
}

func estimate(trafficSeconds int) maps.Estimate {
	return maps.Estimate{
		Distance:          types.Metric{Text: "12 km", Value: 12000},
		Duration:          types.Metric{Text: "15 mins", Value: 900},
		DurationInTraffic: types.Metric{Text: "traffic", Value: trafficSeconds},
	}
}

type testEnv struct {
	svc      *Service
	store    *Store
	resolver *fakeResolver
	metrics  *fakeMetrics
	notifier *fakeNotifier
	catalog  *messages.Catalog
}

func newTestEnv(t *testing.T, fn func(call int) (maps.Estimate, error)) *testEnv {
	t.Helper()
	catalog, err := messages.NewCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	store := NewStore()
	resolver := &fakeResolver{results: map[string][]maps.Place{}}
	metrics := &fakeMetrics{fn: fn}
	notifier := &fakeNotifier{}
	// A long delay keeps scheduled firings out of engine tests.
	scheduler := NewScheduler(store, metrics, notifier, catalog,
		config.RecheckConfig{Delay: time.Hour, Horizon: 30 * time.Hour})
	svc := NewService(Deps{
		Store:      store,
		Resolver:   resolver,
		Metrics:    metrics,
		Notifier:   notifier,
		Identity:   fakeIdentity{},
		Classifier: fakeClassifier{},
		Scheduler:  scheduler,
		Catalog:    catalog,
	})
	return &testEnv{svc: svc, store: store, resolver: resolver, metrics: metrics, notifier: notifier, catalog: catalog}
}

func (e *testEnv) say(text string) {
	e.svc.HandleMessage(context.Background(), chat.InboundMessage{
		Text:    text,
		Channel: "D123",
		UserID:  "U1",
	})
}

func TestHappyPathEndsRunning(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.resolver.results["mainz"] = []maps.Place{place("Mainz, Germany")}
	env.resolver.results["wiesbaden"] = []maps.Place{place("Wiesbaden, Germany")}

	env.say("when should i leave")
	env.say("mainz")
	env.say("wiesbaden")
	env.say("10")

	sess := env.store.Get("U1")
	if sess == nil {
		t.Fatal("expected live session")
	}
	if sess.Stage != StageRunning {
		t.Fatalf("stage = %s, want %s", sess.Stage, StageRunning)
	}
	if got := sess.Request.TargetDuration; got != 600 {
		t.Fatalf("target duration = %d, want 600", got)
	}
	if sess.Request.Origin == nil || sess.Request.Origin.Address != "Mainz, Germany" {
		t.Fatalf("origin = %+v", sess.Request.Origin)
	}
	if sess.Request.Destination == nil || sess.Request.Destination.Address != "Wiesbaden, Germany" {
		t.Fatalf("destination = %+v", sess.Request.Destination)
	}
	// One measurement when the destination locked in, one on entering running.
	if got := env.metrics.Calls(); got != 2 {
		t.Fatalf("measurement calls = %d, want 2", got)
	}
}

func TestImmediateTargetMetSkipsScheduling(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(300), nil })
	env.resolver.results["a"] = []maps.Place{place("A")}
	env.resolver.results["b"] = []maps.Place{place("B")}

	env.say("when should i leave")
	env.say("a")
	env.say("b")
	env.say("10") // target 600s, current traffic 300s

	if env.store.Get("U1") != nil {
		t.Fatal("session should be removed once the target is already met")
	}
	leaveNow := env.catalog.Get("YOU_CAN_LEAVE_NOW", "B", "traffic")
	found := false
	for _, m := range env.notifier.Sent() {
		if m == leaveNow {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q among %v", leaveNow, env.notifier.Sent())
	}
}

func TestDisambiguationSelection(t *testing.T) {
	candidates := []maps.Place{place("Springfield, IL"), place("Springfield, MA"), place("Springfield, MO")}

	cases := []struct {
		name       string
		selection  string
		wantOrigin string // "" means the selection must be rejected
	}{
		{"first", "1", "Springfield, IL"},
		{"middle", "2", "Springfield, MA"},
		{"last", "3", "Springfield, MO"},
		{"zero", "0", ""},
		{"past end", "4", ""},
		{"non-numeric", "two", ""},
		{"negative", "-1", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
			env.resolver.results["springfield"] = candidates

			env.say("when should i leave")
			env.say("springfield")

			sess := env.store.Get("U1")
			if sess.Stage != StageOriginSupplied {
				t.Fatalf("stage = %s, want %s", sess.Stage, StageOriginSupplied)
			}

			env.say(tc.selection)

			sess = env.store.Get("U1")
			if tc.wantOrigin == "" {
				if sess.Stage != StageOriginSupplied {
					t.Fatalf("invalid selection changed stage to %s", sess.Stage)
				}
				oob := env.catalog.Get("SELECTION_OUT_OF_BOUNDS", 3)
				sent := env.notifier.Sent()
				if sent[len(sent)-1] != oob {
					t.Fatalf("last message = %q, want %q", sent[len(sent)-1], oob)
				}
				return
			}
			if sess.Stage != StageOriginSelected {
				t.Fatalf("stage = %s, want %s", sess.Stage, StageOriginSelected)
			}
			if sess.Request.Origin.Address != tc.wantOrigin {
				t.Fatalf("origin = %s, want %s", sess.Request.Origin.Address, tc.wantOrigin)
			}
			if sess.Origins != nil {
				t.Fatal("candidate list not cleared after selection")
			}
		})
	}
}

func TestNoLocationFoundKeepsStage(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.resolver.results["nowhere"] = nil

	env.say("when should i leave")
	env.say("nowhere")

	sess := env.store.Get("U1")
	if sess.Stage != StageRequestStarted {
		t.Fatalf("stage = %s, want %s", sess.Stage, StageRequestStarted)
	}
	sent := env.notifier.Sent()
	if want := env.catalog.Get("NO_LOCATION_FOUND"); sent[len(sent)-1] != want {
		t.Fatalf("last message = %q, want %q", sent[len(sent)-1], want)
	}
}

func TestCancelRemovesSessionAndRestartIsFresh(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.resolver.results["mainz"] = []maps.Place{place("Mainz, Germany")}

	env.say("when should i leave")
	env.say("mainz")
	if got := env.store.Get("U1").Stage; got != StageOriginSelected {
		t.Fatalf("stage = %s, want %s", got, StageOriginSelected)
	}

	env.say("cancel")
	if env.store.Get("U1") != nil {
		t.Fatal("session not removed on cancel")
	}

	env.say("when should i leave")
	sess := env.store.Get("U1")
	if sess == nil || sess.Stage != StageRequestStarted {
		t.Fatalf("restart did not produce a fresh session: %+v", sess)
	}
	if sess.Request.Origin != nil {
		t.Fatal("residual origin survived cancellation")
	}
}

func TestCancelWithoutSession(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.say("cancel")
	sent := env.notifier.Sent()
	if want := env.catalog.Get("UNKOWN_COMMAND"); len(sent) != 1 || sent[0] != want {
		t.Fatalf("sent = %v, want [%q]", sent, want)
	}
}

func TestLeaveQueryWhileRunningReportsWithoutMeasuring(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.resolver.results["a"] = []maps.Place{place("A")}
	env.resolver.results["b"] = []maps.Place{place("B")}

	env.say("when should i leave")
	env.say("a")
	env.say("b")
	env.say("10")

	calls := env.metrics.Calls()
	before := len(env.notifier.Sent())

	env.say("when should i leave")

	if got := env.metrics.Calls(); got != calls {
		t.Fatalf("repeated query triggered %d new measurements", got-calls)
	}
	sent := env.notifier.Sent()
	if len(sent) != before+1 {
		t.Fatalf("repeated query sent %d messages, want 1", len(sent)-before)
	}
	if !strings.Contains(sent[len(sent)-1], "traffic") {
		t.Fatalf("reply %q does not report the last duration-in-traffic", sent[len(sent)-1])
	}
	if got := env.store.Get("U1").Stage; got != StageRunning {
		t.Fatalf("stage changed to %s", got)
	}
}

func TestGreetingLeavesSessionsUntouched(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.resolver.results["mainz"] = []maps.Place{place("Mainz, Germany")}

	env.say("when should i leave")
	env.say("hello")

	sess := env.store.Get("U1")
	if sess == nil || sess.Stage != StageRequestStarted {
		t.Fatalf("greeting disturbed the session: %+v", sess)
	}
	sent := env.notifier.Sent()
	if want := env.catalog.Get("SAY_HELLO"); sent[len(sent)-1] != want {
		t.Fatalf("last message = %q, want %q", sent[len(sent)-1], want)
	}
}

func TestUnknownTextWithoutSession(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.say("what's the weather like")
	sent := env.notifier.Sent()
	if want := env.catalog.Get("UNKOWN_COMMAND"); len(sent) != 1 || sent[0] != want {
		t.Fatalf("sent = %v, want [%q]", sent, want)
	}
}

func TestInvalidTargetDurationReprompts(t *testing.T) {
	env := newTestEnv(t, func(int) (maps.Estimate, error) { return estimate(1800), nil })
	env.resolver.results["a"] = []maps.Place{place("A")}
	env.resolver.results["b"] = []maps.Place{place("B")}

	env.say("when should i leave")
	env.say("a")
	env.say("b")
	env.say("soonish")

	sess := env.store.Get("U1")
	if sess.Stage != StageDestinationSelected {
		t.Fatalf("stage = %s, want %s", sess.Stage, StageDestinationSelected)
	}
	if sess.Request.TargetDuration != 0 {
		t.Fatalf("target duration set to %d from invalid input", sess.Request.TargetDuration)
	}
}
