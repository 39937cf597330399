// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package stockwatch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom"
	"github.com/loomkit/loom/internal/feed"
	"github.com/loomkit/loom/stockwatch"
)

func testStocks() (msft, aapl stockwatch.Stock) {
	msft = stockwatch.Stock{Name: "Microsoft", Key: "msft.us", Color: stockwatch.Color{G: 0x1e, B: 0xbe}}
	aapl = stockwatch.Stock{Name: "Apple", Key: "aapl.us", Color: stockwatch.Color{R: 0x7d, G: 0x7d, B: 0x7d}}
	return msft, aapl
}

// quoteCSV builds a daily-quote payload with rows data records after the
// header. Closing prices start at 100 and rise by 0.25 per record.
func quoteCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		c := 100 + float64(i)*0.25
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%d\n",
			day.Format("2006-01-02"), c-1, c+1, c-2, c, 1000+i)
		day = day.AddDate(0, 0, 1)
	}
	return []byte(b.String())
}

type stubFeed struct {
	mu       sync.Mutex
	payloads map[string][]byte
	calls    []string
	gate     chan struct{} // when set, the first call blocks on it
}

func (f *stubFeed) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	first := len(f.calls) == 0
	f.calls = append(f.calls, key)
	data, ok := f.payloads[key]
	gate := f.gate
	f.mu.Unlock()

	if first && gate != nil {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch %q: %w", key, ctx.Err())
		case <-gate:
		}
	}
	if !ok {
		return nil, fmt.Errorf("no data for %q: %w", key, stockwatch.ErrFetchFailed)
	}
	return data, nil
}

func (f *stubFeed) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type stubParser struct {
	mu   sync.Mutex
	outs [][]float64 // consumed front to back, last one sticks
	wait time.Duration
}

func (p *stubParser) Parse(ctx context.Context, data []byte, n int) ([]float64, error) {
	if p.wait > 0 {
		t := time.NewTimer(p.wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.outs) == 0 {
		return nil, fmt.Errorf("nothing scripted: %w", stockwatch.ErrMalformedInput)
	}
	out := p.outs[0]
	if len(p.outs) > 1 {
		p.outs = p.outs[1:]
	}
	return out, nil
}

type renderRecord struct {
	stock  stockwatch.Stock
	points int
}

type stubRenderer struct {
	mu    sync.Mutex
	calls []renderRecord
	done  chan renderRecord
	fail  error
}

func newStubRenderer() *stubRenderer {
	return &stubRenderer{done: make(chan renderRecord, 16)}
}

func (r *stubRenderer) Render(_ *loom.LoopContext, s stockwatch.Stock, series []float64) error {
	r.mu.Lock()
	fail := r.fail
	rec := renderRecord{stock: s, points: len(series)}
	if fail == nil {
		r.calls = append(r.calls, rec)
	}
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	r.done <- rec
	return nil
}

func (r *stubRenderer) rendered() []renderRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderRecord(nil), r.calls...)
}

type statusRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (s *statusRecorder) SetText(_ *loom.LoopContext, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

func (s *statusRecorder) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func startedRuntime(t *testing.T) *loom.Runtime {
	t.Helper()
	rt := loom.New(context.Background(), loom.WithWorkers(2))
	go func() {
		_ = rt.Run()
	}()
	t.Cleanup(rt.Close)
	return rt
}

// observedRuntime additionally reports every failed flow on the returned
// channel, so tests can wait for a cycle that ends in an error instead of
// a render.
func observedRuntime(t *testing.T) (*loom.Runtime, <-chan error) {
	t.Helper()
	failures := make(chan error, 8)
	rt := loom.New(context.Background(),
		loom.WithWorkers(2),
		loom.WithObserver(loom.ObserverFunc(func(ev loom.Event) {
			if ev.Kind != loom.EventFlowFailed {
				return
			}
			select {
			case failures <- ev.Err:
			default:
			}
		})))
	go func() {
		_ = rt.Run()
	}()
	t.Cleanup(rt.Close)
	return rt, failures
}

// startWorkflow runs wf on its own goroutine and tears it down with the
// test. The returned channel yields Run's error exactly once.
func startWorkflow(t *testing.T, wf *stockwatch.Workflow, rt *loom.Runtime) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		errCh <- wf.Run(ctx, rt)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Error("workflow did not stop")
		}
	})
	return cancel, errCh
}

// waitSubs blocks until the selection emitter carries n subscriptions. The
// workflow holds one for its whole run (the supersede watch) and a second
// one whenever it is parked awaiting the next selection, so n=2 means the
// workflow is ready for a pick. That state persists until the test emits,
// which makes it a safe barrier; transient states are not.
func waitSubs(t *testing.T, em *loom.Emitter[stockwatch.Stock], n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for em.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("emitter never reached %d subscriptions, have %d", n, em.Len())
		}
		time.Sleep(time.Millisecond)
	}
}

func waitFetchStarted(t *testing.T, f *stubFeed, key string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		for _, k := range f.fetched() {
			if k == key {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("fetch of %q never started", key)
		}
		time.Sleep(time.Millisecond)
	}
}

func awaitRender(t *testing.T, r *stubRenderer) renderRecord {
	t.Helper()
	select {
	case rec := <-r.done:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a render")
		return renderRecord{}
	}
}

func awaitFailure(t *testing.T, failures <-chan error) error {
	t.Helper()
	select {
	case err := <-failures:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a failed cycle")
		return nil
	}
}

func TestWorkflowChartsSelectedStock(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)
	msft, _ := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	feedStub := &stubFeed{payloads: map[string][]byte{"msft.us": quoteCSV(599)}}
	renderer := newStubRenderer()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feedStub,
		Parse:      &feed.SeriesParser{},
		Render:     renderer,
		Status:     &statusRecorder{},
		Points:     500,
	})
	chk.NoError(err)

	startWorkflow(t, wf, rt)
	waitSubs(t, selections, 2)
	selections.Emit(msft)

	rec := awaitRender(t, renderer)
	chk.Equal("Microsoft", rec.stock.Name)
	chk.Equal(500, rec.points)

	// Once the workflow is awaiting again the cycle's artifact is in place.
	waitSubs(t, selections, 2)
	phase, _ := wf.Phase()
	chk.Equal(stockwatch.PhaseWaiting, phase)
	snap, _ := wf.Snapshot()
	chk.Equal("msft.us", snap.Stock.Key)
	chk.Len(snap.Series, 500)
	chk.InDelta(100.0, snap.Series[0], 1e-9)
	chk.InDelta(224.75, snap.Series[499], 1e-9)
	chk.False(snap.When.IsZero())
	chk.Equal([]string{"msft.us"}, feedStub.fetched())
}

func TestWorkflowRunsOneCyclePerSelection(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)
	msft, aapl := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	feedStub := &stubFeed{payloads: map[string][]byte{
		"msft.us": quoteCSV(10),
		"aapl.us": quoteCSV(20),
	}}
	renderer := newStubRenderer()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feedStub,
		Parse:      &feed.SeriesParser{},
		Render:     renderer,
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	startWorkflow(t, wf, rt)

	for i, stock := range []stockwatch.Stock{msft, aapl, msft} {
		waitSubs(t, selections, 2)
		selections.Emit(stock)
		rec := awaitRender(t, renderer)
		chk.Equal(stock.Key, rec.stock.Key, "cycle %d", i)
	}

	waitSubs(t, selections, 2)
	chk.Len(renderer.rendered(), 3)
	snap, _ := wf.Snapshot()
	chk.Equal("msft.us", snap.Stock.Key)
	chk.Len(snap.Series, 10)
}

func TestWorkflowSupersedesInFlightCycle(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)
	msft, aapl := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	feedStub := &stubFeed{
		payloads: map[string][]byte{
			"msft.us": quoteCSV(10),
			"aapl.us": quoteCSV(20),
		},
		gate: make(chan struct{}),
	}
	renderer := newStubRenderer()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feedStub,
		Parse:      &feed.SeriesParser{},
		Render:     renderer,
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	startWorkflow(t, wf, rt)

	// The first selection blocks inside its fetch; the second must cancel
	// that cycle and start a fresh one of its own.
	waitSubs(t, selections, 2)
	selections.Emit(msft)
	waitFetchStarted(t, feedStub, "msft.us")
	selections.Emit(aapl)

	rec := awaitRender(t, renderer)
	chk.Equal("aapl.us", rec.stock.Key)
	chk.Equal(20, rec.points)
	chk.Equal([]string{"msft.us", "aapl.us"}, feedStub.fetched())
	chk.Len(renderer.rendered(), 1)
}

func TestWorkflowSurvivesFetchFailure(t *testing.T) {
	chk := require.New(t)
	rt, failures := observedRuntime(t)
	msft, aapl := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	feedStub := &stubFeed{payloads: map[string][]byte{"aapl.us": quoteCSV(15)}}
	renderer := newStubRenderer()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feedStub,
		Parse:      &feed.SeriesParser{},
		Render:     renderer,
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	_, errCh := startWorkflow(t, wf, rt)

	waitSubs(t, selections, 2)
	selections.Emit(msft) // no payload, the fetch fails
	chk.ErrorIs(awaitFailure(t, failures), stockwatch.ErrFetchFailed)
	waitSubs(t, selections, 2)

	select {
	case err := <-errCh:
		t.Fatalf("workflow stopped on a data error: %v", err)
	default:
	}

	selections.Emit(aapl)
	rec := awaitRender(t, renderer)
	chk.Equal("aapl.us", rec.stock.Key)
	chk.Equal([]renderRecord{{stock: aapl, points: 15}}, renderer.rendered())
}

func TestWorkflowSurvivesMalformedPayload(t *testing.T) {
	chk := require.New(t)
	rt, failures := observedRuntime(t)
	msft, aapl := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	feedStub := &stubFeed{payloads: map[string][]byte{
		"msft.us": []byte("<html>not csv</html>"),
		"aapl.us": quoteCSV(8),
	}}
	renderer := newStubRenderer()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feedStub,
		Parse:      &feed.SeriesParser{},
		Render:     renderer,
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	startWorkflow(t, wf, rt)

	waitSubs(t, selections, 2)
	selections.Emit(msft)
	chk.ErrorIs(awaitFailure(t, failures), stockwatch.ErrMalformedInput)
	chk.Empty(renderer.rendered())

	waitSubs(t, selections, 2)
	selections.Emit(aapl)
	rec := awaitRender(t, renderer)
	chk.Equal("aapl.us", rec.stock.Key)
}

func TestWorkflowSurvivesShortSeries(t *testing.T) {
	chk := require.New(t)
	rt, failures := observedRuntime(t)
	msft, _ := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	feedStub := &stubFeed{payloads: map[string][]byte{"msft.us": quoteCSV(5)}}
	renderer := newStubRenderer()
	parser := &stubParser{outs: [][]float64{
		{42.0}, // too short to chart
		{42.0, 43.0, 44.0},
	}}
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feedStub,
		Parse:      parser,
		Render:     renderer,
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	startWorkflow(t, wf, rt)

	waitSubs(t, selections, 2)
	selections.Emit(msft)
	chk.ErrorIs(awaitFailure(t, failures), stockwatch.ErrInsufficientData)
	chk.Empty(renderer.rendered())

	waitSubs(t, selections, 2)
	selections.Emit(msft)
	rec := awaitRender(t, renderer)
	chk.Equal(3, rec.points)
}

func TestWorkflowStopsOnRendererError(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)
	msft, _ := testStocks()

	boom := errors.New("terminal went away")
	selections := loom.NewEmitter[stockwatch.Stock]()
	renderer := newStubRenderer()
	renderer.fail = boom
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      &stubFeed{payloads: map[string][]byte{"msft.us": quoteCSV(10)}},
		Parse:      &feed.SeriesParser{},
		Render:     renderer,
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	_, errCh := startWorkflow(t, wf, rt)
	waitSubs(t, selections, 2)
	selections.Emit(msft)

	select {
	case err := <-errCh:
		chk.ErrorIs(err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("workflow kept running after a renderer failure")
	}
}

func TestWorkflowStopsWhenRuntimeCloses(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)
	msft, _ := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	feedStub := &stubFeed{
		payloads: map[string][]byte{"msft.us": quoteCSV(10)},
		gate:     make(chan struct{}),
	}
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feedStub,
		Parse:      &feed.SeriesParser{},
		Render:     newStubRenderer(),
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	_, errCh := startWorkflow(t, wf, rt)

	waitSubs(t, selections, 2)
	selections.Emit(msft)
	waitFetchStarted(t, feedStub, "msft.us")
	rt.Close()
	close(feedStub.gate)

	select {
	case err := <-errCh:
		chk.ErrorIs(err, loom.ErrContextUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("workflow kept running after the runtime closed")
	}
}

func TestWorkflowRunHonorsContextCancel(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)

	selections := loom.NewEmitter[stockwatch.Stock]()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      &stubFeed{},
		Parse:      &feed.SeriesParser{},
		Render:     newStubRenderer(),
		Status:     &statusRecorder{},
		Points:     50,
	})
	chk.NoError(err)

	cancel, errCh := startWorkflow(t, wf, rt)
	waitSubs(t, selections, 2)
	cancel()

	select {
	case err := <-errCh:
		chk.ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("workflow kept running after cancellation")
	}
}

func TestWorkflowStatusTickerMarksProgress(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)
	msft, _ := testStocks()

	selections := loom.NewEmitter[stockwatch.Stock]()
	status := &statusRecorder{}
	renderer := newStubRenderer()
	parser := &stubParser{
		outs: [][]float64{{1, 2, 3}},
		wait: 150 * time.Millisecond,
	}
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      &stubFeed{payloads: map[string][]byte{"msft.us": quoteCSV(5)}},
		Parse:      parser,
		Render:     renderer,
		Status:     status,
		Points:     50,
		Tick:       5 * time.Millisecond,
		Marker:     3,
	})
	chk.NoError(err)

	startWorkflow(t, wf, rt)
	waitSubs(t, selections, 2)
	selections.Emit(msft)
	awaitRender(t, renderer)

	texts := status.all()
	chk.NotEmpty(texts)

	// Every line is a phase name plus one to marker dots, and the dot
	// marker starts over once it runs past the marker count.
	sawWrap := false
	sawProcessing := false
	var processing []int
	for _, text := range texts {
		base := strings.TrimRight(text, ".")
		dots := len(text) - len(base)
		chk.Contains([]string{"Waiting", "Downloading", "Processing"}, base)
		chk.GreaterOrEqual(dots, 1)
		chk.LessOrEqual(dots, 3)
		if base == "Processing" {
			sawProcessing = true
			processing = append(processing, dots)
		}
		if base == "Downloading" {
			chk.False(sawProcessing, "the download phase must precede processing")
		}
	}
	for i := 1; i < len(processing); i++ {
		if processing[i-1] == 3 && processing[i] == 1 {
			sawWrap = true
		}
	}
	chk.GreaterOrEqual(len(processing), 6, "the parse should span several ticks")
	chk.True(sawWrap, "the dot marker should wrap after the marker count")
}

func TestWorkflowConfigValidation(t *testing.T) {
	chk := require.New(t)
	selections := loom.NewEmitter[stockwatch.Stock]()
	base := stockwatch.Config{
		Selections: selections,
		Fetch:      &stubFeed{},
		Parse:      &feed.SeriesParser{},
		Render:     newStubRenderer(),
		Status:     &statusRecorder{},
	}

	for name, clear := range map[string]func(*stockwatch.Config){
		"selections": func(c *stockwatch.Config) { c.Selections = nil },
		"fetcher":    func(c *stockwatch.Config) { c.Fetch = nil },
		"parser":     func(c *stockwatch.Config) { c.Parse = nil },
		"renderer":   func(c *stockwatch.Config) { c.Render = nil },
		"status":     func(c *stockwatch.Config) { c.Status = nil },
	} {
		cfg := base
		clear(&cfg)
		_, err := stockwatch.New(cfg)
		chk.Error(err, name)
	}

	cfg := base
	cfg.Points = 1
	_, err := stockwatch.New(cfg)
	chk.ErrorContains(err, "too small to chart")

	wf, err := stockwatch.New(base)
	chk.NoError(err)
	chk.NotNil(wf)
}

func TestWorkflowSecondRunPanics(t *testing.T) {
	chk := require.New(t)
	rt := startedRuntime(t)

	selections := loom.NewEmitter[stockwatch.Stock]()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      &stubFeed{},
		Parse:      &feed.SeriesParser{},
		Render:     newStubRenderer(),
		Status:     &statusRecorder{},
	})
	chk.NoError(err)

	startWorkflow(t, wf, rt)
	waitSubs(t, selections, 2)

	chk.PanicsWithValue("workflow already running", func() {
		_ = wf.Run(context.Background(), rt)
	})
}

func TestWorkflowRunNilRuntimePanics(t *testing.T) {
	chk := require.New(t)

	selections := loom.NewEmitter[stockwatch.Stock]()
	wf, err := stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      &stubFeed{},
		Parse:      &feed.SeriesParser{},
		Render:     newStubRenderer(),
		Status:     &statusRecorder{},
	})
	chk.NoError(err)

	chk.PanicsWithValue("runtime must be non-nil", func() {
		_ = wf.Run(context.Background(), nil)
	})
}
