package inspector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greg-hellings/servicedash/pkg/analysis"
	"github.com/greg-hellings/servicedash/pkg/model"
	"github.com/greg-hellings/servicedash/pkg/notify"
)

const waitTimeout = 2 * time.Second

type fetchRequest struct {
	key   Key
	reply chan fetchReply
}

type fetchReply struct {
	file model.ConfigFile
	err  error
}

// gatedFetcher hands every call to the test, which answers it explicitly.
type gatedFetcher struct {
	requests chan fetchRequest

	mu    sync.Mutex
	calls map[Key]int
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{requests: make(chan fetchRequest, 16), calls: map[Key]int{}}
}

func (f *gatedFetcher) FetchConfigFile(ctx context.Context, serviceID string, index int) (model.ConfigFile, error) {
	key := Key{ServiceID: serviceID, Index: index}
	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()

	req := fetchRequest{key: key, reply: make(chan fetchReply, 1)}
	f.requests <- req
	select {
	case r := <-req.reply:
		return r.file, r.err
	case <-ctx.Done():
		return model.ConfigFile{}, ctx.Err()
	}
}

func (f *gatedFetcher) callsFor(k Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[k]
}

func (f *gatedFetcher) next(t *testing.T) fetchRequest {
	t.Helper()
	select {
	case req := <-f.requests:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a fetch")
		return fetchRequest{}
	}
}

func (f *gatedFetcher) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case req := <-f.requests:
		t.Fatalf("unexpected fetch for %s", req.key)
	case <-time.After(20 * time.Millisecond):
	}
}

type analyzeRequest struct {
	content  string
	fileType model.ConfigType
	reply    chan fetchReply
}

type gatedAnalyzer struct {
	requests chan analyzeRequest

	mu    sync.Mutex
	calls int
}

func newGatedAnalyzer() *gatedAnalyzer {
	return &gatedAnalyzer{requests: make(chan analyzeRequest, 16)}
}

func (a *gatedAnalyzer) Analyze(ctx context.Context, content string, fileType model.ConfigType) (string, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	req := analyzeRequest{content: content, fileType: fileType, reply: make(chan fetchReply, 1)}
	a.requests <- req
	select {
	case r := <-req.reply:
		return r.file.Content, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *gatedAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *gatedAnalyzer) next(t *testing.T) analyzeRequest {
	t.Helper()
	select {
	case req := <-a.requests:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an analysis call")
		return analyzeRequest{}
	}
}

func answer(text string) fetchReply {
	return fetchReply{file: model.ConfigFile{Content: text}}
}

type recordingClipboard struct {
	text string
	err  error
}

func (c *recordingClipboard) Copy(text string) error {
	c.text = text
	return c.err
}

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *recordingOpener) OpenURL(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

type harness struct {
	fetcher   *gatedFetcher
	analyzer  *gatedAnalyzer
	board     *notify.Board
	clipboard *recordingClipboard
	opener    *recordingOpener
	inspector *Inspector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fetcher:   newGatedFetcher(),
		analyzer:  newGatedAnalyzer(),
		board:     notify.NewBoard(clockwork.NewFakeClock(), 0),
		clipboard: &recordingClipboard{},
		opener:    &recordingOpener{},
	}
	h.inspector = New(Options{
		Fetcher:   h.fetcher,
		Analyzer:  h.analyzer,
		Notices:   h.board,
		Clipboard: h.clipboard,
		Opener:    h.opener,
	})
	t.Cleanup(func() {
		if s := h.inspector.Current(); s != nil {
			s.Close()
			s.Wait()
		}
	})
	return h
}

func (h *harness) messages() []string {
	var out []string
	for _, n := range h.board.Active() {
		out = append(out, n.Message)
	}
	return out
}

func service(id string, files ...model.ConfigFile) model.Service {
	return model.Service{
		ID:          id,
		Name:        "svc " + id,
		Status:      model.StatusRunning,
		URL:         "http://nas.lan",
		Port:        8096,
		CPUUsage:    12,
		MemoryUsage: 256,
		Configs:     files,
	}
}

func file(path string) model.ConfigFile {
	return model.ConfigFile{Type: model.DetectConfigType(path), Path: path, LastEdited: "2024-03-01 09:00"}
}

func embedded(path, content string) model.ConfigFile {
	f := file(path)
	f.Content = content
	return f
}

func TestSession_EmbeddedContentReadyWithoutFetch(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("a", embedded("/srv/compose.yml", "services: {}")))

	v := s.View()
	assert.Equal(t, TabConfig, v.Tab)
	assert.Equal(t, ModeCode, v.Mode)
	assert.True(t, v.ContentReady)
	assert.False(t, v.Loading)
	assert.Equal(t, "services: {}", v.Content)

	h.fetcher.assertIdle(t)
	s.Wait()
	assert.Zero(t, h.fetcher.callsFor(Key{"a", 0}))
}

func TestSession_LazyLoadPerFile(t *testing.T) {
	h := newHarness(t)
	svc := service("b", file("/srv/compose.yml"), file("/srv/Dockerfile"))
	s := h.inspector.Open(context.Background(), svc)

	v := s.View()
	assert.True(t, v.Loading)
	assert.False(t, v.ContentReady)

	req := h.fetcher.next(t)
	assert.Equal(t, Key{"b", 0}, req.key)
	req.reply <- answer("X")
	s.Wait()

	v = s.View()
	assert.False(t, v.Loading)
	assert.True(t, v.ContentReady)
	assert.Equal(t, "X", v.Content)
	assert.Equal(t, "/srv/compose.yml", v.File.Path)

	require.NoError(t, s.SelectFile(1))
	req = h.fetcher.next(t)
	assert.Equal(t, Key{"b", 1}, req.key)
	req.reply <- answer("FROM alpine")
	s.Wait()

	require.NoError(t, s.SelectFile(0))
	v = s.View()
	assert.Equal(t, "X", v.Content)
	h.fetcher.assertIdle(t)
	assert.Equal(t, 1, h.fetcher.callsFor(Key{"b", 0}))

	assert.Empty(t, svc.Configs[0].Content, "caller's service is not modified")
}

func TestSession_DuplicateFetchSuppressed(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("c", file("/a.yml"), file("/b.yml")))

	req := h.fetcher.next(t)
	require.NoError(t, s.SelectFile(1))
	second := h.fetcher.next(t)
	require.NoError(t, s.SelectFile(0))
	require.NoError(t, s.SelectTab(TabMetrics))
	require.NoError(t, s.SelectTab(TabConfig))
	h.fetcher.assertIdle(t)

	req.reply <- answer("a: 1")
	second.reply <- answer("b: 2")
	s.Wait()
	assert.Equal(t, 1, h.fetcher.callsFor(Key{"c", 0}))
	assert.Equal(t, 1, h.fetcher.callsFor(Key{"c", 1}))
}

func TestSession_StaleFetchOnlyUpdatesItsKey(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("d", file("/a.yml"), embedded("/b.yml", "b: 2")))

	req := h.fetcher.next(t)
	require.NoError(t, s.SelectFile(1))
	req.reply <- answer("a: 1")
	s.Wait()

	v := s.View()
	assert.Equal(t, 1, v.FileIndex)
	assert.Equal(t, "b: 2", v.Content)

	require.NoError(t, s.SelectFile(0))
	v = s.View()
	assert.True(t, v.ContentReady)
	assert.Equal(t, "a: 1", v.Content)
	h.fetcher.assertIdle(t)
}

func TestSession_FetchFailureIsScoped(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("e",
		embedded("/zero.yml", "zero"),
		embedded("/one.yml", "one"),
		file("/two.yml"),
	))

	require.NoError(t, s.SelectFile(2))
	req := h.fetcher.next(t)
	req.reply <- fetchReply{err: errors.New("Failed to load config")}
	s.Wait()

	v := s.View()
	assert.Equal(t, "Failed to load config", v.LoadError)
	assert.False(t, v.ContentReady)
	assert.False(t, v.Loading)

	for i, want := range []string{"zero", "one"} {
		require.NoError(t, s.SelectFile(i))
		v = s.View()
		assert.True(t, v.ContentReady)
		assert.Equal(t, want, v.Content)
		assert.Empty(t, v.LoadError)
	}

	require.NoError(t, s.SelectTab(TabMetrics))
	require.NoError(t, s.SelectTab(TabConfig))
	h.fetcher.assertIdle(t)

	// Re-navigating to the failed file retries once.
	require.NoError(t, s.SelectFile(2))
	v = s.View()
	assert.True(t, v.Loading)
	assert.Empty(t, v.LoadError)
	req = h.fetcher.next(t)
	req.reply <- answer("two")
	s.Wait()
	assert.Equal(t, "two", s.View().Content)
}

func TestSession_FailedFileRetriedOnConfigTabEntry(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("f", file("/a.yml")))

	req := h.fetcher.next(t)
	req.reply <- fetchReply{err: errors.New("HTTP 502")}
	s.Wait()
	require.Equal(t, "HTTP 502", s.View().LoadError)

	require.NoError(t, s.SelectTab(TabMetrics))
	h.fetcher.assertIdle(t)
	require.NoError(t, s.SelectTab(TabConfig))
	req = h.fetcher.next(t)
	req.reply <- answer("ok: true")
	s.Wait()
	assert.True(t, s.View().ContentReady)
}

func TestSession_MetricsTabDefersLoading(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("g", embedded("/a.yml", "a"), file("/b.yml")))

	require.NoError(t, s.SelectTab(TabMetrics))
	require.NoError(t, s.SelectFile(1))
	h.fetcher.assertIdle(t)

	v := s.View()
	assert.Equal(t, TabMetrics, v.Tab)
	assert.Equal(t, 24, v.History.Len())

	require.NoError(t, s.SelectTab(TabConfig))
	req := h.fetcher.next(t)
	assert.Equal(t, Key{"g", 1}, req.key)
	req.reply <- answer("b")
	s.Wait()
}

func TestSession_SelectFileOutOfRange(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("h", embedded("/a.yml", "a")))

	assert.ErrorIs(t, s.SelectFile(1), ErrInvalidSelection)
	assert.ErrorIs(t, s.SelectFile(-1), ErrInvalidSelection)
	assert.Equal(t, 0, s.View().FileIndex)
	assert.ErrorIs(t, s.SelectTab(Tab("bogus")), ErrInvalidSelection)
}

func TestSession_NoConfigFiles(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("empty"))

	v := s.View()
	assert.Zero(t, v.FileCount)
	assert.False(t, v.ContentReady)
	assert.ErrorIs(t, s.SelectFile(0), ErrInvalidSelection)
	assert.ErrorIs(t, s.RequestAnalysis(), ErrContentNotReady)
	h.fetcher.assertIdle(t)
}

func TestSession_RequestAnalysisRejectedUntilLoaded(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("i", file("/a.yml")))
	req := h.fetcher.next(t)

	err := s.RequestAnalysis()
	assert.ErrorIs(t, err, ErrContentNotReady)
	assert.Equal(t, ModeCode, s.View().Mode)
	assert.Equal(t, []string{"Config content not loaded yet"}, h.messages())
	assert.Zero(t, h.analyzer.callCount())

	req.reply <- answer("a: 1")
	s.Wait()
	require.NoError(t, s.RequestAnalysis())
	ar := h.analyzer.next(t)
	ar.reply <- answer("fine")
	s.Wait()
}

func TestSession_EmptyFetchedFileIsNotReady(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("j", file("/empty.ini")))
	h.fetcher.next(t).reply <- answer("")
	s.Wait()

	v := s.View()
	assert.False(t, v.Loading)
	assert.False(t, v.ContentReady)
	assert.ErrorIs(t, s.RequestAnalysis(), ErrContentNotReady)
	assert.ErrorIs(t, s.Copy(), ErrContentNotReady)
	h.fetcher.assertIdle(t)
}

func TestSession_AnalysisCalledOncePerKey(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("k", embedded("/compose.yml", "image: nginx")))

	require.NoError(t, s.RequestAnalysis())
	v := s.View()
	assert.Equal(t, ModeAnalysis, v.Mode)
	assert.True(t, v.Analyzing)

	req := h.analyzer.next(t)
	assert.Equal(t, "image: nginx", req.content)
	assert.Equal(t, model.ConfigYAML, req.fileType)

	require.NoError(t, s.RequestAnalysis())
	assert.Equal(t, 1, h.analyzer.callCount())

	req.reply <- answer("## Summary")
	s.Wait()

	require.NoError(t, s.RequestAnalysis())
	s.Wait()
	v = s.View()
	assert.Equal(t, 1, h.analyzer.callCount())
	assert.True(t, v.HasAnalysis)
	assert.Equal(t, "## Summary", v.Analysis)
	assert.False(t, v.Analyzing)
}

func TestSession_AnalysisFailureNotCached(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("l", embedded("/compose.yml", "x: 1")))

	require.NoError(t, s.RequestAnalysis())
	h.analyzer.next(t).reply <- fetchReply{err: analysis.ErrEmptyResult}
	s.Wait()

	v := s.View()
	assert.Equal(t, ModeAnalysis, v.Mode)
	assert.False(t, v.HasAnalysis)
	assert.False(t, v.Analyzing)
	require.Len(t, h.messages(), 1)
	assert.Equal(t, "analysis failed: "+analysis.ErrEmptyResult.Error(), h.messages()[0])

	require.NoError(t, s.RequestAnalysis())
	h.analyzer.next(t).reply <- answer("retry ok")
	s.Wait()
	assert.Equal(t, 2, h.analyzer.callCount())
	assert.Equal(t, "retry ok", s.View().Analysis)
}

func TestSession_LateAnalysisDoesNotAlterCurrentView(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("m",
		embedded("/a.yml", "a"),
		embedded("/b.yml", "b"),
	))

	require.NoError(t, s.RequestAnalysis())
	req := h.analyzer.next(t)
	require.NoError(t, s.SelectFile(1))
	req.reply <- answer("analysis of a")
	s.Wait()

	v := s.View()
	assert.Equal(t, 1, v.FileIndex)
	assert.Equal(t, ModeCode, v.Mode)
	assert.Equal(t, "b", v.Content)
	assert.False(t, v.HasAnalysis)

	require.NoError(t, s.SelectFile(0))
	v = s.View()
	assert.Equal(t, ModeCode, v.Mode)
	assert.True(t, v.HasAnalysis)

	require.NoError(t, s.RequestAnalysis())
	s.Wait()
	assert.Equal(t, 1, h.analyzer.callCount())
	assert.Equal(t, "analysis of a", s.View().Analysis)
}

func TestSession_CopyAndOpen(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("n", file("/a.yml")))
	req := h.fetcher.next(t)

	assert.ErrorIs(t, s.Copy(), ErrContentNotReady)
	assert.Empty(t, h.clipboard.text)

	req.reply <- answer("a: 1")
	s.Wait()
	require.NoError(t, s.Copy())
	assert.Equal(t, "a: 1", h.clipboard.text)
	assert.Contains(t, h.messages(), "Configuration copied to clipboard")

	require.NoError(t, s.OpenService())
	s.Wait()
	assert.Equal(t, []string{"http://nas.lan:8096"}, h.opener.urls)

	noURL := service("o")
	noURL.URL = ""
	s = h.inspector.Open(context.Background(), noURL)
	assert.ErrorIs(t, s.OpenService(), ErrNoURL)
}

func TestSession_CopyFailureRaisesNotice(t *testing.T) {
	h := newHarness(t)
	h.clipboard.err = errors.New("no tty")
	s := h.inspector.Open(context.Background(), service("p", embedded("/a.yml", "a")))

	assert.Error(t, s.Copy())
	assert.Equal(t, []string{"Failed to copy configuration: no tty"}, h.messages())
}

func TestSession_ChangesSignalled(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("q", file("/a.yml")))
	h.fetcher.next(t).reply <- answer("a")

	select {
	case _, ok := <-s.Changes():
		assert.True(t, ok)
	case <-time.After(waitTimeout):
		t.Fatal("expected a change signal")
	}
	s.Wait()
}

func TestSession_CloseDropsLateResults(t *testing.T) {
	h := newHarness(t)
	s := h.inspector.Open(context.Background(), service("r", file("/a.yml")))
	h.fetcher.next(t)

	s.Close()
	s.Wait()

	v := s.View()
	assert.True(t, v.Closed)
	assert.False(t, v.ContentReady)
	assert.ErrorIs(t, s.SelectFile(0), ErrSessionClosed)
	assert.ErrorIs(t, s.RequestAnalysis(), ErrSessionClosed)
	assert.ErrorIs(t, s.Copy(), ErrSessionClosed)

	_, ok := <-s.Changes()
	assert.False(t, ok)
	s.Close()
}

func TestInspector_OpenReplacesSession(t *testing.T) {
	h := newHarness(t)
	first := h.inspector.Open(context.Background(), service("s", embedded("/a.yml", "first")))
	require.NoError(t, first.RequestAnalysis())
	h.analyzer.next(t)

	second := h.inspector.Open(context.Background(), service("t", embedded("/a.yml", "second")))
	first.Wait()

	assert.True(t, first.View().Closed)
	assert.Same(t, second, h.inspector.Current())
	assert.NotEqual(t, first.ID(), second.ID())

	v := second.View()
	assert.Equal(t, ModeCode, v.Mode)
	assert.False(t, v.HasAnalysis)
	assert.False(t, v.Analyzing)
	assert.Equal(t, "second", v.Content)

	h.inspector.Close()
	assert.Nil(t, h.inspector.Current())
	assert.True(t, second.View().Closed)
}
