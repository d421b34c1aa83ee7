// Package render draws services, host statistics and inspector views for a
// terminal. Tables adapt to the console width and colors can be disabled
// for deterministic output.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/greg-hellings/servicedash/pkg/model"
)

// Console renders to a terminal.
type Console struct {
	// EnableColors toggles ANSI color output.
	EnableColors bool
	// Width overrides terminal width detection when positive.
	Width int
}

// NewConsole creates a renderer with colors enabled.
func NewConsole() *Console {
	return &Console{EnableColors: true}
}

// Services writes the service list as a table followed by totals.
func (c *Console) Services(w io.Writer, list *model.ServiceList) error {
	if list == nil {
		return fmt.Errorf("nil service list")
	}

	tw := c.newTable(w)
	tw.AppendHeader(table.Row{"#", "ID", "Name", "Status", "Endpoint", "Uptime", "CPU", "Memory", "Configs"})

	nameWidth := c.columnWidth(w, 24)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: nameWidth, Transformer: truncTransformer(nameWidth)},
		{Number: 5, WidthMax: nameWidth + 8, Transformer: truncTransformer(nameWidth + 8)},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})

	for i, svc := range list.Services {
		name := svc.Name
		if svc.Remote() {
			name += " @" + svc.Host
		}
		tw.AppendRow(table.Row{
			i + 1,
			svc.ID,
			name,
			c.status(svc.Status),
			svc.Endpoint(),
			orDash(svc.Uptime),
			fmt.Sprintf("%.1f%%", svc.CPUUsage),
			fmt.Sprintf("%.0f MB", svc.MemoryUsage),
			len(svc.Configs),
		})
	}
	tw.Render()

	if _, err := fmt.Fprintf(w, "\n%d services, %d running\n", list.Total, list.Running); err != nil {
		return fmt.Errorf("failed writing service summary: %w", err)
	}
	return nil
}

// HostStats writes host resource usage.
func (c *Console) HostStats(w io.Writer, stats *model.HostStats) error {
	if stats == nil {
		return fmt.Errorf("nil host stats")
	}

	tw := c.newTable(w)
	tw.AppendHeader(table.Row{"Resource", "Usage", "Detail"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	tw.AppendRow(table.Row{"CPU", fmt.Sprintf("%.1f%%", stats.CPU.Usage),
		fmt.Sprintf("%d cores / %d threads", stats.CPU.Cores, stats.CPU.Threads)})
	tw.AppendRow(table.Row{"Memory", percent(stats.Memory.UsedGB, stats.Memory.TotalGB),
		fmt.Sprintf("%.1f / %.1f GB", stats.Memory.UsedGB, stats.Memory.TotalGB)})
	tw.AppendRow(table.Row{"Storage", percent(stats.Storage.UsedGB, stats.Storage.TotalGB),
		fmt.Sprintf("%.0f / %.0f GB", stats.Storage.UsedGB, stats.Storage.TotalGB)})
	tw.Render()
	return nil
}

func (c *Console) newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = true
	return tw
}

func (c *Console) width(w io.Writer) int {
	if c.Width > 0 {
		return c.Width
	}
	return detectTerminalWidth(w)
}

// columnWidth scales a preferred width down for narrow terminals.
func (c *Console) columnWidth(w io.Writer, preferred int) int {
	tw := c.width(w)
	if tw <= 0 {
		return preferred
	}
	return max(12, min(preferred, tw/5))
}

func (c *Console) status(s model.Status) string {
	switch s {
	case model.StatusRunning:
		return c.color(string(s), text.FgGreen)
	case model.StatusError:
		return c.color(string(s), text.FgRed)
	case model.StatusMaintenance:
		return c.color(string(s), text.FgYellow)
	default:
		return c.color(string(s), text.FgHiBlack)
	}
}

func (c *Console) color(s string, colors ...text.Color) string {
	if !c.EnableColors {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

func percent(used, total float64) string {
	if total <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", used/total*100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// detectTerminalWidth attempts to get terminal width if writer is a file (stdout/stderr).
func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

// truncTransformer returns a text.Transformer to ellipsize overly wide cells.
func truncTransformer(max int) text.Transformer {
	return func(val interface{}) string {
		return truncateRunes(fmt.Sprint(val), max)
	}
}

// truncateRunes truncates a string to (max) runes with ellipsis.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= max-1 {
			break
		}
		b.WriteRune(r)
		count++
	}
	b.WriteRune('…')
	return b.String()
}
