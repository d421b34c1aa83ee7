package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/servicedash/pkg/config"
	"github.com/greg-hellings/servicedash/pkg/hoststats"
	"github.com/greg-hellings/servicedash/pkg/model"
	"github.com/greg-hellings/servicedash/pkg/render"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagConfig  string
	flagSource  string
	flagVerbose bool
	flagDebug   bool
	flagNoColor bool
)

// services / host command flags
var (
	flagFormat     string
	flagJSONIndent bool
	flagLocal      bool
	flagFileType   string
	flagTimeout    time.Duration
)

// loaded by the root command before any subcommand runs
var cfg *config.Config

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		// If Execute() returns an error, logging may or may not be initialized yet.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servicedash",
		Short: "Service dashboard CLI",
		Long: strings.TrimSpace(`
servicedash - Home lab service dashboard

Lists services and host usage from the dashboard API, or from services
declared in a local configuration file, and inspects each service's
configuration files with optional AI analysis.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(flagConfig)
			if err != nil {
				return err
			}
			cfg = loaded
			initLogging(cfg.Logging.Level)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Configuration file (YAML or TOML)")
	cmd.PersistentFlags().StringVar(&flagSource, "source", sourceAPI, "Service source: api|catalog")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (info) logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	cmd.Version = version

	// Add subcommands
	cmd.AddCommand(newServicesCmd())
	cmd.AddCommand(newHostCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newVersionCmd prints version info (simple helper).
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "servicedash version: %s\n", version)
		},
	}
}

func newServicesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "services",
		Short: "List services and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := newSource(cfg, flagSource)
			if err != nil {
				return err
			}
			list, err := src.ListServices(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list services: %w", err)
			}
			slog.Info("Listed services", "source", flagSource, "total", list.Total, "running", list.Running)
			return output(cmd.OutOrStdout(), list, func(w io.Writer) error {
				return newConsole().Services(w, list)
			})
		},
	}
	c.Flags().StringVarP(&flagFormat, "format", "f", "console", "Output format: console|json")
	c.Flags().BoolVar(&flagJSONIndent, "json-indent", false, "Pretty-print JSON output")
	return c
}

func newHostCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "host",
		Short: "Show host CPU, memory and storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout())
			defer cancel()

			var stats *model.HostStats
			var err error
			if flagLocal || flagSource == sourceCatalog {
				collector := &hoststats.Collector{Interval: 500 * time.Millisecond}
				stats, err = collector.Collect(ctx)
			} else {
				stats, err = newAPIClient(cfg).HostStats(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to read host stats: %w", err)
			}
			return output(cmd.OutOrStdout(), stats, func(w io.Writer) error {
				return newConsole().HostStats(w, stats)
			})
		},
	}
	c.Flags().BoolVar(&flagLocal, "local", false, "Read this machine's usage instead of the API's")
	c.Flags().StringVarP(&flagFormat, "format", "f", "console", "Output format: console|json")
	c.Flags().BoolVar(&flagJSONIndent, "json-indent", false, "Pretty-print JSON output")
	return c
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [service-id|#]",
		Short: "Interactively inspect service configuration files",
		Long: strings.TrimSpace(`
Start an interactive inspector. Type 'help' for commands. When a service ID
or list number is given, that service is opened immediately.`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := newSource(cfg, flagSource)
			if err != nil {
				return err
			}
			analyzer, err := newAnalyzer(ctx, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sh := newShell(cfg, src, analyzer, out)
			slog.Debug("Inspector ready", "source", flagSource, "analysis", cfg.Analysis.Provider,
				"noticeDuration", cfg.Notices.Duration().String())

			if len(args) == 1 {
				if err := sh.Execute(ctx, "open "+args[0]); err != nil {
					return err
				}
			} else if err := sh.Execute(ctx, "list"); err != nil {
				return err
			}
			return sh.Run(ctx, cmd.InOrStdin())
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "analyze <config-file>",
		Short: "Run AI analysis on a single configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			fileType := model.DetectConfigType(path)
			if flagFileType != "" {
				fileType = model.ConfigType(strings.ToUpper(flagFileType))
				if !fileType.Valid() {
					return fmt.Errorf("unsupported file type: %s", flagFileType)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			analyzer, err := newAnalyzer(ctx, cfg)
			if err != nil {
				return err
			}

			start := time.Now()
			result, err := analyzer.Analyze(ctx, string(data), fileType)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			slog.Info("Analysis complete", "file", path, "type", fileType, "duration", time.Since(start).String())
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(result, "\n"))
			return err
		},
	}
	c.Flags().StringVarP(&flagFileType, "type", "t", "", "File type: yaml|dockerfile|json|ini (default: from file name)")
	c.Flags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "Timeout for the analysis call")
	return c
}

func initLogging(configured string) {
	// We rely on slog default logger replacement here idempotently.
	var level slog.Level
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	default:
		// Validated when the config was loaded.
		level, _ = config.ParseLevel(configured)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging initialized", "level", level.String())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	loaded, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return loaded, nil
}

func newConsole() *render.Console {
	c := render.NewConsole()
	c.EnableColors = !flagNoColor
	return c
}

// output renders v as JSON or through the console renderer per --format.
func output(w io.Writer, v any, console func(io.Writer) error) error {
	switch strings.ToLower(flagFormat) {
	case "console", "":
		return console(w)
	case "json":
		var data []byte
		var err error
		if flagJSONIndent {
			data, err = json.MarshalIndent(v, "", "  ")
		} else {
			data, err = json.Marshal(v)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n"))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", flagFormat)
	}
}

