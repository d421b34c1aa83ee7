package shell

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// OSC52 copies text through the terminal's OSC 52 clipboard escape, which
// works over SSH without a local clipboard tool.
type OSC52 struct {
	mu sync.Mutex
	W  io.Writer
}

// Copy writes the clipboard escape sequence for text.
func (c *OSC52) Copy(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.W == nil {
		return fmt.Errorf("no terminal attached")
	}
	seq := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
	if _, err := io.WriteString(c.W, seq); err != nil {
		return fmt.Errorf("failed writing clipboard sequence: %w", err)
	}
	return nil
}
