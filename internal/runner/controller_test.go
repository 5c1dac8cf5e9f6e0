package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/events"
	"github.com/maltedev/listing-scraper/internal/layout"
	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

type fakeDriver struct {
	browser.Driver
	id     int
	closed int
}

func (d *fakeDriver) Close() error {
	d.closed++
	return nil
}

type fakeSessions struct {
	drivers  []*fakeDriver
	rotates  int
	released []int
	// failAcquireAt makes the n-th Acquire (1-based) fail; 0 disables.
	failAcquireAt int
}

func (s *fakeSessions) Acquire(ctx context.Context) (browser.Driver, error) {
	if s.failAcquireAt > 0 && len(s.drivers)+1 == s.failAcquireAt {
		return nil, scrapeerr.New(scrapeerr.KindContextInit, "launch", errors.New("chromium crashed"))
	}
	d := &fakeDriver{id: len(s.drivers) + 1}
	s.drivers = append(s.drivers, d)
	return d, nil
}

func (s *fakeSessions) Rotate(ctx context.Context, current browser.Driver) (browser.Driver, error) {
	s.rotates++
	s.Release(current)
	return s.Acquire(ctx)
}

func (s *fakeSessions) Release(d browser.Driver) {
	if d == nil {
		return
	}
	fd := d.(*fakeDriver)
	_ = fd.Close()
	s.released = append(s.released, fd.id)
}

func (s *fakeSessions) live() int {
	n := 0
	for _, d := range s.drivers {
		if d.closed == 0 {
			n++
		}
	}
	return n
}

// scriptedExtractor fails the first failures[url] attempts of a URL and then
// returns rows[url] rows.
type scriptedExtractor struct {
	failures map[string]int
	rows     map[string]int
	calls    map[string]int
	drivers  []int
}

func newScriptedExtractor() *scriptedExtractor {
	return &scriptedExtractor{
		failures: map[string]int{},
		rows:     map[string]int{},
		calls:    map[string]int{},
	}
}

func (e *scriptedExtractor) Extract(ctx context.Context, d browser.Driver, url string, l *layout.SiteLayout) ([]models.ScrapedRow, error) {
	e.calls[url]++
	e.drivers = append(e.drivers, d.(*fakeDriver).id)
	if e.calls[url] <= e.failures[url] {
		return nil, scrapeerr.New(scrapeerr.KindNavigation, "navigate", errors.New("net::ERR_TIMED_OUT")).WithURL(url)
	}
	var out []models.ScrapedRow
	for i := 0; i < e.rows[url]; i++ {
		out = append(out, models.ScrapedRow{
			SourceURL: url,
			Values:    []string{fmt.Sprintf("brand-%d", i), fmt.Sprintf("name-%d", i)},
		})
	}
	return out, nil
}

type memSink struct {
	clears    int
	header    []string
	rows      [][]string
	appends   int
	appendErr error
	clearErr  error
}

func (s *memSink) Clear(ctx context.Context) error {
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.header = nil
	s.rows = nil
	return nil
}

func (s *memSink) AppendHeader(ctx context.Context, header []string) error {
	s.header = header
	return nil
}

func (s *memSink) AppendRows(ctx context.Context, rows [][]string) error {
	s.appends++
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, rows...)
	return nil
}

type staticSource struct {
	urls []string
	err  error
}

func (s staticSource) URLs(ctx context.Context) ([]string, error) {
	return s.urls, s.err
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) {
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []events.EventType {
	var out []events.EventType
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	sessions  *fakeSessions
	extractor *scriptedExtractor
	sink      *memSink
	publisher *recordingPublisher
	skipped   []models.Outcome
	ctrl      *Controller
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	l, err := layout.DefaultRegistry().Get("Myntra")
	require.NoError(t, err)

	f := &fixture{
		sessions:  &fakeSessions{},
		extractor: newScriptedExtractor(),
		sink:      &memSink{},
		publisher: &recordingPublisher{},
	}
	f.ctrl, err = NewController(cfg, Deps{
		Layout:    l,
		Sessions:  f.sessions,
		Extractor: f.extractor,
		Sink:      f.sink,
		Events:    f.publisher,
		OnSkip: func(ctx context.Context, o models.Outcome) {
			f.skipped = append(f.skipped, o)
		},
	}, slog.Default())
	require.NoError(t, err)
	return f
}

func TestNewController_Validation(t *testing.T) {
	l, err := layout.DefaultRegistry().Get("Myntra")
	require.NoError(t, err)
	deps := Deps{Layout: l, Sessions: &fakeSessions{}, Extractor: newScriptedExtractor(), Sink: &memSink{}}

	_, err = NewController(Config{MaxRetriesPerURL: 0, RestartDriverAfter: 25}, deps, slog.Default())
	assert.Error(t, err)

	_, err = NewController(Config{MaxRetriesPerURL: 3, RestartDriverAfter: 0}, deps, slog.Default())
	assert.Error(t, err)

	_, err = NewController(DefaultConfig(), Deps{Layout: l}, slog.Default())
	assert.Error(t, err)

	ctrl, err := NewController(DefaultConfig(), deps, slog.Default())
	require.NoError(t, err)
	assert.NotEmpty(t, ctrl.RunID())
}

func TestProcessWorkItem_RecoversAfterNavigationFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	url := "https://site/x"
	f.extractor.failures[url] = 1
	f.extractor.rows[url] = 3

	out, err := f.ctrl.ProcessWorkItem(context.Background(), models.WorkItem{URL: url})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSucceeded, out.Status)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 1, out.Rotations)
	assert.Equal(t, 3, out.Rows)
	assert.Equal(t, 1, f.sessions.rotates)

	// The retry ran on the replacement session.
	assert.Equal(t, []int{1, 2}, f.extractor.drivers)
	assert.Equal(t, []int{1}, f.sessions.released)

	require.Len(t, f.sink.rows, 3)
	for _, row := range f.sink.rows {
		assert.Equal(t, url, row[0])
	}
	assert.Empty(t, f.skipped)
}

func TestProcessWorkItem_StopsAtFirstSuccess(t *testing.T) {
	for k := 1; k <= 3; k++ {
		t.Run(fmt.Sprintf("success on attempt %d", k), func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			url := "https://site/list"
			f.extractor.failures[url] = k - 1
			f.extractor.rows[url] = 2

			out, err := f.ctrl.ProcessWorkItem(context.Background(), models.WorkItem{URL: url})
			require.NoError(t, err)

			assert.Equal(t, models.StatusSucceeded, out.Status)
			assert.Equal(t, k, f.extractor.calls[url])
			assert.Equal(t, k, out.Attempts)
			// One replacement per failed attempt.
			assert.Equal(t, k-1, f.sessions.rotates)
			assert.Equal(t, k-1, out.Rotations)
			assert.Len(t, f.sink.rows, 2)
		})
	}
}

func TestProcessWorkItem_SkipsAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	url := "https://site/broken"
	f.extractor.failures[url] = 10
	f.extractor.rows[url] = 5

	out, err := f.ctrl.ProcessWorkItem(context.Background(), models.WorkItem{URL: url})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSkipped, out.Status)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, f.extractor.calls[url])
	// The final failure also replaces the session.
	assert.Equal(t, 3, f.sessions.rotates)
	assert.Equal(t, 3, out.Rotations)
	assert.Contains(t, out.LastError, "navigation")
	assert.Zero(t, f.sink.appends)

	require.Len(t, f.skipped, 1)
	assert.Equal(t, url, f.skipped[0].Item.URL)
	assert.Contains(t, f.publisher.types(), events.EventTypeItemSkipped)
}

func TestProcessWorkItem_ZeroRowsIsSuccess(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	url := "https://site/empty"

	out, err := f.ctrl.ProcessWorkItem(context.Background(), models.WorkItem{URL: url})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSucceeded, out.Status)
	assert.Zero(t, out.Rows)
	assert.Equal(t, 1, f.extractor.calls[url])
	assert.Zero(t, f.sessions.rotates)
	assert.Zero(t, f.sink.appends)
}

func TestProcessWorkItem_SessionInitFailureIsFatal(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	url := "https://site/x"
	f.extractor.failures[url] = 1
	f.sessions.failAcquireAt = 2

	_, err := f.ctrl.ProcessWorkItem(context.Background(), models.WorkItem{URL: url})
	require.Error(t, err)
	assert.True(t, scrapeerr.Is(err, scrapeerr.KindContextInit))
	assert.Equal(t, 1, f.extractor.calls[url])
	assert.Empty(t, f.skipped)
}

func TestProcessWorkItem_SinkFailureIsFatal(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	url := "https://site/x"
	f.extractor.rows[url] = 1
	f.sink.appendErr = errors.New("quota exceeded")

	_, err := f.ctrl.ProcessWorkItem(context.Background(), models.WorkItem{URL: url})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	// Sink errors are not retried.
	assert.Equal(t, 1, f.extractor.calls[url])
	assert.Zero(t, f.sessions.rotates)
}

func TestRun_NoURLs(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	summary, err := f.ctrl.Run(context.Background(), staticSource{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.sink.clears)
	assert.Equal(t, []string{"Source URL", "Html 1", "Html2"}, f.sink.header)
	assert.Empty(t, f.sink.rows)
	assert.Empty(t, f.sessions.drivers)
	assert.Zero(t, summary.Total)
	assert.Equal(t, StateFinished, f.ctrl.Progress().Snapshot().State)
}

func TestRun_SourceErrorIsFatal(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	_, err := f.ctrl.Run(context.Background(), staticSource{err: errors.New("sheet unavailable")})
	require.Error(t, err)
	assert.Zero(t, f.sink.clears)
	assert.Equal(t, StateFailed, f.ctrl.Progress().Snapshot().State)
}

func TestRun_ClearFailureIsFatal(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.sink.clearErr = errors.New("permission denied")

	_, err := f.ctrl.Run(context.Background(), staticSource{urls: []string{"https://site/a"}})
	require.Error(t, err)
	assert.Empty(t, f.sessions.drivers)
}

func TestRun_ProactiveRotation(t *testing.T) {
	f := newFixture(t, Config{MaxRetriesPerURL: 3, RestartDriverAfter: 2})
	urls := []string{"https://site/1", "https://site/2", "https://site/3", "https://site/4", "https://site/5"}
	for _, u := range urls {
		f.extractor.rows[u] = 1
	}

	summary, err := f.ctrl.Run(context.Background(), staticSource{urls: urls})
	require.NoError(t, err)

	// Rotations before items 3 and 5.
	assert.Equal(t, 2, f.sessions.rotates)
	assert.Equal(t, []int{1, 1, 2, 2, 3}, f.extractor.drivers)
	assert.Equal(t, 2, summary.Rotations)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Equal(t, 5, summary.Rows)
	assert.Len(t, f.sink.rows, 5)
}

func TestRun_FailureRotationResetsCounter(t *testing.T) {
	f := newFixture(t, Config{MaxRetriesPerURL: 3, RestartDriverAfter: 2})
	urls := []string{"https://site/1", "https://site/2", "https://site/3", "https://site/4"}
	for _, u := range urls {
		f.extractor.rows[u] = 1
	}
	f.extractor.failures["https://site/2"] = 1

	_, err := f.ctrl.Run(context.Background(), staticSource{urls: urls})
	require.NoError(t, err)

	// Item 2 fails once (rotation, counter reset), then completes: counter 1.
	// Item 3 runs without rotation, counter 2, so item 4 starts on a new session.
	assert.Equal(t, []int{1, 1, 2, 2, 3}, f.extractor.drivers)
	assert.Equal(t, 2, f.sessions.rotates)
}

func TestRun_SkippedItemDoesNotStopRun(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	urls := []string{"https://site/bad", "https://site/good"}
	f.extractor.failures["https://site/bad"] = 3
	f.extractor.rows["https://site/good"] = 2

	summary, err := f.ctrl.Run(context.Background(), staticSource{urls: urls})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, []string{"https://site/bad"}, summary.SkippedURL)
	assert.Equal(t, 3, summary.Rotations)
	require.Len(t, f.sink.rows, 2)
	assert.Equal(t, "https://site/good", f.sink.rows[0][0])
	assert.Len(t, f.skipped, 1)
}

func TestRun_ReleasesSessionOnExit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.extractor.rows["https://site/a"] = 1

		_, err := f.ctrl.Run(context.Background(), staticSource{urls: []string{"https://site/a"}})
		require.NoError(t, err)
		assert.Zero(t, f.sessions.live())
	})

	t.Run("fatal sink error", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.extractor.rows["https://site/a"] = 1
		f.sink.appendErr = errors.New("boom")

		_, err := f.ctrl.Run(context.Background(), staticSource{urls: []string{"https://site/a", "https://site/b"}})
		require.Error(t, err)
		assert.Zero(t, f.sessions.live())
		assert.Zero(t, f.extractor.calls["https://site/b"])
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.ctrl.Run(ctx, staticSource{urls: []string{"https://site/a"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, f.sessions.live())
	})
}

func TestRun_PublishesEvents(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.extractor.failures["https://site/a"] = 1
	f.extractor.rows["https://site/a"] = 1

	_, err := f.ctrl.Run(context.Background(), staticSource{urls: []string{"https://site/a"}})
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.EventTypeRunStarted,
		events.EventTypeAttemptFailed,
		events.EventTypeSessionRotated,
		events.EventTypeItemSucceeded,
		events.EventTypeRunFinished,
	}, f.publisher.types())

	for _, ev := range f.publisher.events {
		assert.Equal(t, f.ctrl.RunID(), ev.RunID)
	}
	assert.Equal(t, string(scrapeerr.KindNavigation), f.publisher.events[1].Kind)
}

func TestProgress_Snapshot(t *testing.T) {
	p := NewProgress()
	assert.Equal(t, StateIdle, p.Snapshot().State)

	p.start(models.Summary{RunID: "r"})
	p.attempt("https://site/a", 2)
	snap := p.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, "https://site/a", snap.CurrentURL)
	assert.Equal(t, 2, snap.Attempt)

	s := models.Summary{RunID: "r", SkippedURL: []string{"https://site/a"}}
	p.finish(s, errors.New("sink down"))
	snap = p.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "sink down", snap.Error)
	assert.Empty(t, snap.CurrentURL)

	// Snapshots do not alias internal state.
	snap.Summary.SkippedURL[0] = "changed"
	assert.Equal(t, "https://site/a", p.Snapshot().Summary.SkippedURL[0])
}
