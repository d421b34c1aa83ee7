package inspector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greg-hellings/servicedash/pkg/analysis"
	"github.com/greg-hellings/servicedash/pkg/metrics"
	"github.com/greg-hellings/servicedash/pkg/model"
	"github.com/greg-hellings/servicedash/pkg/notify"
)

// Notice texts raised by a session.
const (
	noticeNotLoaded = "Config content not loaded yet"
	noticeCopied    = "Configuration copied to clipboard"
)

// ConfigFetcher loads the content of one configuration file.
type ConfigFetcher interface {
	FetchConfigFile(ctx context.Context, serviceID string, index int) (model.ConfigFile, error)
}

// Clipboard receives copied content.
type Clipboard interface {
	Copy(text string) error
}

// URLOpener opens a service URL outside the inspector.
type URLOpener interface {
	OpenURL(url string) error
}

// Options holds the collaborators shared by every session of an Inspector.
type Options struct {
	Fetcher   ConfigFetcher
	Analyzer  analysis.Client
	Notices   notify.Sink
	Clipboard Clipboard
	Opener    URLOpener
	Metrics   metrics.Synthesizer
	// AnalysisTimeout bounds a single analysis call; zero leaves it to the
	// provider's transport.
	AnalysisTimeout time.Duration
	Logger          *slog.Logger
}

// View is a consistent snapshot of a session for presentation.
type View struct {
	SessionID string
	Service   model.Service
	Tab       Tab
	Mode      SubMode
	FileIndex int
	FileCount int
	// File is the selected file's metadata, with Content set once loaded.
	File         model.ConfigFile
	Content      string
	ContentReady bool
	Loading      bool
	LoadError    string
	Analyzing    bool
	Analysis     string
	HasAnalysis  bool
	History      metrics.History
	Closed       bool
}

// Session is one inspector session over a single service. Navigation is
// synchronous; content loads and analysis calls run in the background and
// are applied to the caches under the key they were issued for.
type Session struct {
	id      string
	svc     model.Service
	opts    Options
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	changes chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	nav      Navigation
	contents *Store[model.ConfigFile]
	analyses *Store[string]
	history  metrics.History
}

func newSession(ctx context.Context, svc model.Service, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Notices == nil {
		opts.Notices = notify.Discard
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.Unavailable{}
	}

	ctx, cancel := context.WithCancel(ctx)
	svc = svc.Clone()
	id := uuid.NewString()
	s := &Session{
		id:       id,
		svc:      svc,
		opts:     opts,
		logger:   logger.With("session", id, "service", svc.ID),
		ctx:      ctx,
		cancel:   cancel,
		changes:  make(chan struct{}, 1),
		nav:      NewNavigation(len(svc.Configs)),
		contents: NewStore[model.ConfigFile](),
		analyses: NewStore[string](),
		history:  opts.Metrics.Generate(svc.CPUUsage, svc.MemoryUsage),
	}

	for i, file := range svc.Configs {
		if file.HasContent() {
			s.contents.Put(s.key(i), file)
		}
	}

	s.logger.Info("inspector session opened", "files", len(svc.Configs), "preloaded", s.contents.Len())

	s.mu.Lock()
	s.ensureContent()
	s.mu.Unlock()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Service returns the inspected service.
func (s *Session) Service() model.Service { return s.svc.Clone() }

// Changes delivers a signal whenever the view may have changed. Signals
// coalesce; the channel is closed when the session closes.
func (s *Session) Changes() <-chan struct{} { return s.changes }

// Wait blocks until all background work started so far has settled.
func (s *Session) Wait() { s.wg.Wait() }

// SelectTab switches between the configuration and metrics tabs. Entering
// the configuration tab retries a failed load of the current file.
func (s *Session) SelectTab(t Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	prev := s.nav.Tab()
	if err := s.nav.SelectTab(t); err != nil {
		return err
	}
	if t == TabConfig && prev != TabConfig && s.nav.HasFile() {
		s.contents.ClearFailure(s.current())
	}
	s.ensureContent()
	s.signal()
	return nil
}

// SelectFile selects file i, resets the sub-mode to code and starts loading
// the file if needed.
func (s *Session) SelectFile(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.nav.SelectFile(i); err != nil {
		s.logger.Error("rejected file selection", "index", i, "files", s.nav.FileCount())
		return err
	}
	s.contents.ClearFailure(s.current())
	s.ensureContent()
	s.signal()
	return nil
}

// RequestAnalysis switches to the analysis view and, unless a result is
// already cached or in flight for the current file, starts one analysis.
// It fails with ErrContentNotReady, leaving the view unchanged, when the
// current file has no content yet.
func (s *Session) RequestAnalysis() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	file, ready := s.currentContent()
	if err := s.nav.RequestAnalysis(ready); err != nil {
		s.opts.Notices.Notify(noticeNotLoaded, notify.SeverityError)
		return err
	}
	s.signal()

	key := s.current()
	if _, ok := s.analyses.Get(key); ok {
		return nil
	}
	if s.analyses.HasPending(key) {
		return nil
	}

	s.analyses.MarkPending(key)
	s.logger.Info("analysis started", "index", key.Index, "type", file.Type)
	s.wg.Add(1)
	go s.analyze(key, file)
	return nil
}

// SelectCodeView returns to the raw content view.
func (s *Session) SelectCodeView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.nav.SelectCodeView()
	s.signal()
}

// Copy sends the current file's content to the clipboard. It is disabled
// until the content is ready.
func (s *Session) Copy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	file, ready := s.currentContent()
	if !ready {
		return ErrContentNotReady
	}
	if s.opts.Clipboard == nil {
		return ErrClipboardUnavailable
	}
	if err := s.opts.Clipboard.Copy(file.Content); err != nil {
		s.opts.Notices.Notify("Failed to copy configuration: "+err.Error(), notify.SeverityError)
		return err
	}
	s.opts.Notices.Notify(noticeCopied, notify.SeveritySuccess)
	return nil
}

// OpenService opens the service URL. Opening happens in the background and
// its outcome is only logged.
func (s *Session) OpenService() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.svc.URL == "" {
		return ErrNoURL
	}
	if s.opts.Opener == nil {
		return nil
	}
	url := s.svc.Endpoint()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.opts.Opener.OpenURL(url); err != nil {
			s.logger.Warn("failed to open service URL", "url", url, "error", err)
		}
	}()
	return nil
}

// View returns a snapshot of the current selection.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID: s.id,
		Service:   s.svc.Clone(),
		Tab:       s.nav.Tab(),
		Mode:      s.nav.Mode(),
		FileIndex: s.nav.Index(),
		FileCount: s.nav.FileCount(),
		History:   s.history,
		Closed:    s.closed,
	}
	if !s.nav.HasFile() {
		return v
	}

	key := s.current()
	v.File = s.svc.Configs[key.Index]
	if file, ok := s.contents.Get(key); ok {
		v.File = file
		v.Content = file.Content
		v.ContentReady = file.HasContent()
	}
	v.Loading = s.contents.HasPending(key)
	v.LoadError, _ = s.contents.Failure(key)
	v.Analyzing = s.analyses.HasPending(key)
	v.Analysis, v.HasAnalysis = s.analyses.Get(key)
	return v
}

// Close ends the session. Results that arrive afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	close(s.changes)
	s.logger.Info("inspector session closed")
}

func (s *Session) key(i int) Key {
	return Key{ServiceID: s.svc.ID, Index: i}
}

// current returns the key of the selected file. Caller holds mu.
func (s *Session) current() Key {
	return s.key(s.nav.Index())
}

// currentContent returns the loaded copy of the selected file and whether
// it is ready. Caller holds mu.
func (s *Session) currentContent() (model.ConfigFile, bool) {
	if !s.nav.HasFile() {
		return model.ConfigFile{}, false
	}
	file, ok := s.contents.Get(s.current())
	return file, ok && file.HasContent()
}

// ensureContent starts a load of the selected file when the configuration
// tab is showing and the file is neither cached, in flight nor failed.
// Caller holds mu.
func (s *Session) ensureContent() {
	if s.nav.Tab() != TabConfig || !s.nav.HasFile() {
		return
	}
	key := s.current()
	if _, ok := s.contents.Get(key); ok {
		return
	}
	if s.contents.HasPending(key) {
		return
	}
	if _, failed := s.contents.Failure(key); failed {
		return
	}
	if s.opts.Fetcher == nil {
		s.contents.Fail(key, "no configuration source available")
		return
	}

	s.contents.MarkPending(key)
	s.logger.Debug("loading config file", "index", key.Index)
	s.wg.Add(1)
	go s.fetch(key)
}

func (s *Session) fetch(key Key) {
	defer s.wg.Done()
	file, err := s.opts.Fetcher.FetchConfigFile(s.ctx, key.ServiceID, key.Index)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.contents.ClearPending(key)
	if err != nil {
		s.logger.Warn("failed to load config file", "index", key.Index, "error", err)
		s.contents.Fail(key, err.Error())
		s.signal()
		return
	}

	// Keep the session's type and path; take content and timestamp from the
	// loaded copy.
	loaded := s.svc.Configs[key.Index]
	loaded.Content = file.Content
	if file.LastEdited != "" {
		loaded.LastEdited = file.LastEdited
	}
	s.contents.Put(key, loaded)
	s.logger.Debug("config file loaded", "index", key.Index, "bytes", len(loaded.Content))
	s.signal()
}

func (s *Session) analyze(key Key, file model.ConfigFile) {
	defer s.wg.Done()
	ctx := s.ctx
	if s.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AnalysisTimeout)
		defer cancel()
	}
	text, err := s.opts.Analyzer.Analyze(ctx, file.Content, file.Type)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.analyses.ClearPending(key)
	if err != nil {
		s.logger.Warn("analysis failed", "index", key.Index, "error", err)
		s.opts.Notices.Notify("analysis failed: "+err.Error(), notify.SeverityError)
		s.signal()
		return
	}
	s.analyses.Put(key, text)
	s.logger.Info("analysis complete", "index", key.Index, "bytes", len(text))
	s.signal()
}

// signal performs a non-blocking send on changes. Caller holds mu and has
// checked that the session is open.
func (s *Session) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
