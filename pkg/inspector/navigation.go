package inspector

import "fmt"

// Tab is the top-level view of an inspector session.
type Tab string

const (
	TabConfig  Tab = "config"
	TabMetrics Tab = "metrics"
)

// SubMode is the view mode inside the configuration tab.
type SubMode string

const (
	ModeCode     SubMode = "code"
	ModeAnalysis SubMode = "analysis"
)

// Navigation is the inspector's selection state machine. The zero value is
// not usable; call NewNavigation.
type Navigation struct {
	tab       Tab
	index     int
	mode      SubMode
	fileCount int
}

// NewNavigation returns the initial state {config, 0, code} for a service
// with fileCount configuration files.
func NewNavigation(fileCount int) Navigation {
	return Navigation{tab: TabConfig, mode: ModeCode, fileCount: fileCount}
}

// Tab returns the active tab.
func (n Navigation) Tab() Tab { return n.tab }

// Index returns the selected file index.
func (n Navigation) Index() int { return n.index }

// Mode returns the active sub-mode.
func (n Navigation) Mode() SubMode { return n.mode }

// FileCount returns the number of selectable files.
func (n Navigation) FileCount() int { return n.fileCount }

// HasFile reports whether the selection points at a file.
func (n Navigation) HasFile() bool { return n.index >= 0 && n.index < n.fileCount }

// SelectTab switches tabs without touching the file or sub-mode.
func (n *Navigation) SelectTab(t Tab) error {
	if t != TabConfig && t != TabMetrics {
		return fmt.Errorf("%w: unknown tab %q", ErrInvalidSelection, t)
	}
	n.tab = t
	return nil
}

// SelectFile selects file i and returns to the code view. Indices outside
// [0, FileCount) are rejected, not clamped.
func (n *Navigation) SelectFile(i int) error {
	if i < 0 || i >= n.fileCount {
		return fmt.Errorf("%w: file index %d out of range [0,%d)", ErrInvalidSelection, i, n.fileCount)
	}
	n.index = i
	n.mode = ModeCode
	return nil
}

// RequestAnalysis enters the analysis view. It is rejected, leaving the
// state unchanged, unless the current file's content is ready.
func (n *Navigation) RequestAnalysis(contentReady bool) error {
	if !contentReady {
		return ErrContentNotReady
	}
	n.mode = ModeAnalysis
	return nil
}

// SelectCodeView returns to the code view.
func (n *Navigation) SelectCodeView() {
	n.mode = ModeCode
}
