// Package shell is a line-oriented operator loop over an inspector. It reads
// one command per line, applies it to the open session and redraws.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/greg-hellings/servicedash/pkg/inspector"
	"github.com/greg-hellings/servicedash/pkg/model"
	"github.com/greg-hellings/servicedash/pkg/notify"
	"github.com/greg-hellings/servicedash/pkg/render"
)

// DefaultSettle bounds how long a command waits for background work before
// the view is drawn without it.
const DefaultSettle = 10 * time.Second

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

// ServiceLister supplies the services that can be opened.
type ServiceLister interface {
	ListServices(ctx context.Context) (*model.ServiceList, error)
}

// Shell drives an Inspector from text commands.
type Shell struct {
	Inspector *inspector.Inspector
	Services  ServiceLister
	Console   *render.Console
	// Board supplies notices to draw; nil draws none.
	Board  *notify.Board
	Out    io.Writer
	Settle time.Duration
	Logger *slog.Logger

	list *model.ServiceList
}

// Run reads commands from in until EOF, quit or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	defer s.Inspector.Close()

	scanner := bufio.NewScanner(in)
	s.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.Execute(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", err)
		}
		s.prompt()
	}
	return scanner.Err()
}

// Execute applies one command line.
func (s *Shell) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return ErrQuit
	case "help", "?":
		s.help()
		return nil
	case "list", "ls":
		return s.listServices(ctx)
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <id|#>")
		}
		return s.open(ctx, args[0])
	case "notices":
		return s.Console.Notices(s.Out, s.notices())
	case "dismiss":
		return s.dismiss(args)
	}

	sess := s.Inspector.Current()
	if sess == nil {
		return fmt.Errorf("no service open; use 'open <id|#>'")
	}

	var err error
	switch cmd {
	case "file", "f":
		if len(args) != 1 {
			return fmt.Errorf("usage: file <n>")
		}
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return fmt.Errorf("file number must be an integer: %s", args[0])
		}
		err = sess.SelectFile(n - 1)
	case "tab":
		if len(args) != 1 {
			return fmt.Errorf("usage: tab config|metrics")
		}
		err = sess.SelectTab(inspector.Tab(strings.ToLower(args[0])))
	case "code":
		sess.SelectCodeView()
	case "analyze", "analyse":
		err = sess.RequestAnalysis()
	case "copy":
		err = sess.Copy()
	case "browse":
		err = sess.OpenService()
	case "close":
		s.Inspector.Close()
		return s.listServices(ctx)
	case "view", "show":
	default:
		return fmt.Errorf("unknown command %q; type 'help'", cmd)
	}

	// The session already raised a notice for these; draw it with the view.
	if err != nil && !errors.Is(err, inspector.ErrContentNotReady) {
		return err
	}
	return s.draw(ctx, sess)
}

func (s *Shell) listServices(ctx context.Context) error {
	list, err := s.Services.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}
	s.list = list
	return s.Console.Services(s.Out, list)
}

func (s *Shell) open(ctx context.Context, ref string) error {
	if s.list == nil {
		list, err := s.Services.ListServices(ctx)
		if err != nil {
			return fmt.Errorf("failed to list services: %w", err)
		}
		s.list = list
	}

	svc, ok := s.list.Find(ref)
	if !ok {
		n, err := strconv.Atoi(ref)
		if err != nil || n < 1 || n > len(s.list.Services) {
			return fmt.Errorf("no service %q", ref)
		}
		svc = s.list.Services[n-1]
	}

	sess := s.Inspector.Open(ctx, svc)
	s.logger().Debug("opened service", "service", svc.ID, "session", sess.ID())
	return s.draw(ctx, sess)
}

func (s *Shell) dismiss(args []string) error {
	if s.Board == nil || len(args) != 1 {
		return fmt.Errorf("usage: dismiss <id>")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		return fmt.Errorf("notice id must be an integer: %s", args[0])
	}
	if !s.Board.Dismiss(id) {
		return fmt.Errorf("no active notice #%d", id)
	}
	return nil
}

// draw renders the session, then waits for in-flight work to settle and
// renders once more if it did.
func (s *Shell) draw(ctx context.Context, sess *inspector.Session) error {
	v := sess.View()
	if err := s.Console.Inspector(s.Out, v, s.notices()); err != nil {
		return err
	}
	if !busy(v) {
		return nil
	}

	settle := s.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	timer := time.NewTimer(settle)
	defer timer.Stop()

	for busy(v) {
		select {
		case _, open := <-sess.Changes():
			if !open {
				return nil
			}
			v = sess.View()
		case <-timer.C:
			s.logger().Debug("view did not settle", "session", sess.ID(), "after", settle)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fmt.Fprintln(s.Out)
	return s.Console.Inspector(s.Out, v, s.notices())
}

func busy(v inspector.View) bool {
	return v.Loading || v.Analyzing
}

func (s *Shell) notices() []notify.Notice {
	if s.Board == nil {
		return nil
	}
	return s.Board.Active()
}

func (s *Shell) prompt() {
	label := "servicedash"
	if sess := s.Inspector.Current(); sess != nil {
		label += ":" + sess.Service().Name
	}
	fmt.Fprintf(s.Out, "%s> ", label)
}

func (s *Shell) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Shell) help() {
	fmt.Fprint(s.Out, `Commands:
  list                  list services
  open <id|#>           inspect a service
  file <n>              select configuration file n
  tab config|metrics    switch tab
  code                  show file content
  analyze               run AI analysis of the current file
  copy                  copy the current file to the clipboard
  browse                open the service URL
  notices               show active notices
  dismiss <id>          dismiss a notice
  close                 close the inspector
  quit                  exit
`)
}
