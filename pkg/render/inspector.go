package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/greg-hellings/servicedash/pkg/inspector"
	"github.com/greg-hellings/servicedash/pkg/metrics"
	"github.com/greg-hellings/servicedash/pkg/notify"
)

const analysisPrompt = `Run "analyze" to scan this file for security risks and best practices.`

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Inspector writes an inspector view: header, tabs, file list, the active
// body and a footer, followed by any active notices.
func (c *Console) Inspector(w io.Writer, v inspector.View, notices []notify.Notice) error {
	var b strings.Builder

	svc := v.Service
	fmt.Fprintf(&b, "%s  %s  %s\n", c.color(svc.Name, text.Bold), svc.Endpoint(), c.status(svc.Status))
	b.WriteString(c.tabs(v))
	b.WriteString("\n\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed writing inspector header: %w", err)
	}

	if v.Tab == inspector.TabMetrics {
		if err := c.metrics(w, v.History, svc.CPUUsage, svc.MemoryUsage); err != nil {
			return err
		}
	} else {
		c.fileList(w, v)
		if err := c.body(w, v); err != nil {
			return err
		}
	}

	return c.Notices(w, notices)
}

// Notices writes active notices, one per line.
func (c *Console) Notices(w io.Writer, notices []notify.Notice) error {
	for _, n := range notices {
		var tag string
		switch n.Severity {
		case notify.SeveritySuccess:
			tag = c.color("[ok]", text.FgGreen)
		case notify.SeverityError:
			tag = c.color("[error]", text.FgRed)
		default:
			tag = c.color("[info]", text.FgCyan)
		}
		if _, err := fmt.Fprintf(w, "%s %s (#%d)\n", tag, n.Message, n.ID); err != nil {
			return fmt.Errorf("failed writing notice: %w", err)
		}
	}
	return nil
}

func (c *Console) tabs(v inspector.View) string {
	label := func(name string, active bool) string {
		if active {
			return c.color("["+name+"]", text.Bold, text.FgCyan)
		}
		return " " + name + " "
	}
	parts := []string{
		label("Configuration", v.Tab == inspector.TabConfig),
		label("Metrics", v.Tab == inspector.TabMetrics),
	}
	if v.Tab == inspector.TabConfig && v.FileCount > 0 {
		parts = append(parts, "|",
			label("Code", v.Mode == inspector.ModeCode),
			label("AI Analysis", v.Mode == inspector.ModeAnalysis))
	}
	return strings.Join(parts, " ")
}

func (c *Console) fileList(w io.Writer, v inspector.View) {
	if v.FileCount == 0 {
		return
	}
	tw := c.newTable(w)
	tw.AppendHeader(table.Row{"", "#", "File", "Type", "Last Edited"})
	nameWidth := c.columnWidth(w, 40)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: nameWidth, Transformer: truncTransformer(nameWidth)},
	})
	for i, f := range v.Service.Configs {
		marker := ""
		if i == v.FileIndex {
			marker = c.color("▶", text.FgCyan)
		}
		tw.AppendRow(table.Row{marker, i + 1, f.Name(), string(f.Type), f.LastEdited})
	}
	tw.Render()
	fmt.Fprintln(w)
}

func (c *Console) body(w io.Writer, v inspector.View) error {
	var b strings.Builder
	switch {
	case v.FileCount == 0:
		b.WriteString(c.color("No configuration files for this service.", text.FgHiBlack))
		b.WriteString("\n")
	case v.Mode == inspector.ModeAnalysis:
		switch {
		case v.Analyzing:
			b.WriteString(c.color("Analyzing configuration with AI...", text.FgCyan))
			b.WriteString("\n")
		case v.HasAnalysis:
			b.WriteString(v.Analysis)
			if !strings.HasSuffix(v.Analysis, "\n") {
				b.WriteString("\n")
			}
		default:
			b.WriteString(c.color(analysisPrompt, text.FgHiBlack))
			b.WriteString("\n")
		}
	case v.LoadError != "":
		b.WriteString(c.color("Error: "+v.LoadError, text.FgRed))
		b.WriteString("\n")
	case v.Loading:
		b.WriteString(c.color("Loading configuration...", text.FgHiBlack))
		b.WriteString("\n")
	case v.ContentReady:
		b.WriteString(c.numbered(v.Content))
	default:
		b.WriteString(c.color("(empty file)", text.FgHiBlack))
		b.WriteString("\n")
	}

	if v.FileCount > 0 {
		size := "-"
		if v.ContentReady {
			size = fmt.Sprintf("%d bytes", len(v.Content))
		}
		fmt.Fprintf(&b, "\n%s  %s  Last edited: %s\n",
			c.color(string(v.File.Type), text.FgMagenta), size, orDash(v.File.LastEdited))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed writing inspector body: %w", err)
	}
	return nil
}

// numbered prefixes each content line with its line number.
func (c *Console) numbered(content string) string {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	digits := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		num := fmt.Sprintf("%*d", digits, i+1)
		fmt.Fprintf(&b, "%s  %s\n", c.color(num, text.FgHiBlack), line)
	}
	return b.String()
}

func (c *Console) metrics(w io.Writer, h metrics.History, cpu, memory float64) error {
	tw := c.newTable(w)
	tw.AppendHeader(table.Row{"Metric", "Current", "History", "Peak"})
	tw.AppendRow(table.Row{"CPU", fmt.Sprintf("%.1f%%", cpu),
		c.color(sparkline(h.CPU(), h.CPUScale()), text.FgCyan), fmt.Sprintf("%.1f%%", peak(h.CPU()))})
	tw.AppendRow(table.Row{"Memory", fmt.Sprintf("%.0f MB", memory),
		c.color(sparkline(h.Memory(), h.MemoryScale()), text.FgMagenta), fmt.Sprintf("%.0f MB", peak(h.Memory()))})
	tw.Render()
	_, err := fmt.Fprintf(w, "%s\n", c.color(fmt.Sprintf("Last %d samples (synthetic)", h.Len()), text.FgHiBlack))
	return err
}

// sparkline maps values in [0, scale] onto block characters.
func sparkline(values []float64, scale float64) string {
	if scale <= 0 {
		scale = 1
	}
	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range values {
		i := int(v / scale * float64(top))
		b.WriteRune(sparkBlocks[max(0, min(top, i))])
	}
	return b.String()
}

func peak(values []float64) float64 {
	p := 0.0
	for _, v := range values {
		p = max(p, v)
	}
	return p
}
