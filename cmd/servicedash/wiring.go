package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/browser"

	"github.com/greg-hellings/servicedash/pkg/analysis"
	"github.com/greg-hellings/servicedash/pkg/api"
	"github.com/greg-hellings/servicedash/pkg/catalog"
	"github.com/greg-hellings/servicedash/pkg/config"
	"github.com/greg-hellings/servicedash/pkg/inspector"
	"github.com/greg-hellings/servicedash/pkg/metrics"
	"github.com/greg-hellings/servicedash/pkg/model"
	"github.com/greg-hellings/servicedash/pkg/notify"
	"github.com/greg-hellings/servicedash/pkg/shell"
)

// Service sources accepted by --source.
const (
	sourceAPI     = "api"
	sourceCatalog = "catalog"
)

// source lists services and loads their configuration files.
type source interface {
	ListServices(ctx context.Context) (*model.ServiceList, error)
	FetchConfigFile(ctx context.Context, serviceID string, index int) (model.ConfigFile, error)
}

func newSource(cfg *config.Config, name string) (source, error) {
	switch name {
	case sourceAPI:
		return newAPIClient(cfg), nil
	case sourceCatalog:
		return catalog.New(cfg, catalog.WithLogger(slog.Default())), nil
	default:
		return nil, fmt.Errorf("unsupported source %q: must be %s or %s", name, sourceAPI, sourceCatalog)
	}
}

func newAPIClient(cfg *config.Config) *api.Client {
	token := cfg.APIToken()
	slog.Debug("Dashboard API client", "baseURL", cfg.API.BaseURL, "token", config.RedactToken(token))
	return api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   token,
		Timeout: cfg.API.Timeout(),
		Logger:  slog.Default(),
	})
}

func newAnalyzer(ctx context.Context, cfg *config.Config) (analysis.Client, error) {
	if cfg.Analysis.Provider == config.AnalysisProviderNone {
		return analysis.Unavailable{Reason: "AI analysis is disabled in the configuration"}, nil
	}
	client, err := analysis.NewGemini(ctx, analysis.GeminiConfig{
		APIKey: cfg.AnalysisKey(),
		Model:  cfg.Analysis.Model,
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure analysis: %w", err)
	}
	return client, nil
}

// newShell wires an inspector over src. Notices go to the shell's board and
// to the log.
func newShell(cfg *config.Config, src source, analyzer analysis.Client, out io.Writer) *shell.Shell {
	board := notify.NewBoard(nil, cfg.Notices.Duration())
	insp := inspector.New(inspector.Options{
		Fetcher:         src,
		Analyzer:        analyzer,
		Notices:         notify.Fanout{board, notify.LogSink{Logger: slog.Default()}},
		Clipboard:       &shell.OSC52{W: out},
		Opener:          browserOpener{},
		Metrics:         metrics.Synthesizer{Samples: cfg.Metrics.Samples},
		AnalysisTimeout: cfg.Analysis.Timeout(),
		Logger:          slog.Default(),
	})
	return &shell.Shell{
		Inspector: insp,
		Services:  src,
		Console:   newConsole(),
		Board:     board,
		Out:       out,
		Logger:    slog.Default(),
	}
}

// browserOpener opens URLs in the system browser.
type browserOpener struct{}

func (browserOpener) OpenURL(url string) error {
	// Keep the browser launcher's own output off the shell.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return browser.OpenURL(url)
}
