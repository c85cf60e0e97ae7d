// Package sh provides the operator shell of stepctl.
package sh

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"github.com/robotalks/stepresp/pkg/config"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	AutoInit    bool

	Shell   *ishell.Shell
	Config  *config.Config
	Context context.Context
	Session *Session
}

const (
	shellKey           = "$shell"
	disconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly bool

	// commands
	commands = []*ishell.Cmd{
		&InitCmd,
		&CloseCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(ctx context.Context, conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		Config:      conf,
		Context:     ctx,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(disconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeInitialized wraps command func requires an initialized board.
func MustBeInitialized(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(errors.New("board not initialized, run init"))
			return
		}
		fn(c)
	}
}

// WithAutoInit sets AutoInit.
func (s *Shell) WithAutoInit(en bool) *Shell {
	s.AutoInit = en
	return s
}

// Init opens the configured link and initializes the board, replacing
// the current session.
func (s *Shell) Init() error {
	sess, err := Open(s.Context, s.Config, nil)
	if err != nil {
		return err
	}
	s.Close()
	s.Session = sess
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", sess.URL))
	return nil
}

// Close closes the current session.
func (s *Shell) Close() {
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			glog.Warningf("close %s: %v", s.Session.URL, err)
		}
		s.Session = nil
		s.Shell.SetPrompt(disconnectedPrompt)
	}
}

// Run runs a single command from args, or the interactive shell.
func (s *Shell) Run(args ...string) error {
	defer s.Close()
	if s.AutoInit {
		if s.Interactive {
			s.Shell.Printf("Initializing %s ...\n", s.Config.Link)
		}
		if err := s.Init(); err != nil {
			return err
		}
	}
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if s.Interactive {
		s.Shell.Run()
		return nil
	}
	return errors.New("command expected")
}

// Status renders the session state.
func (s *Shell) Status() string {
	t := table.NewWriter()
	t.AppendRow(table.Row{"link", s.Config.Link})
	if sess := s.Session; sess != nil {
		plan := sess.Driver.Plan()
		tokens := make([]string, 0, len(plan.Prompts))
		for _, p := range plan.Prompts {
			tokens = append(tokens, p.Token)
		}
		t.AppendRow(table.Row{"motors", plan.MotorCount})
		t.AppendRow(table.Row{"prompts", strings.Join(tokens, " ")})
		t.AppendRow(table.Row{"records", len(sess.Records)})
		if sess.Queue != nil {
			t.AppendRow(table.Row{"station", sess.Station})
		}
	} else {
		t.AppendRow(table.Row{"board", "not initialized"})
	}
	return t.Render()
}

var (
	// InitCmd interrupts and restarts the board.
	InitCmd = ishell.Cmd{
		Name:    "init",
		Aliases: []string{"i"},
		Help:    "open the link and restart the board",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Session != nil && s.Session.URL == s.Config.Link {
				if err := s.Session.Reinit(s.Context); err != nil {
					c.Err(err)
				}
				return
			}
			if err := s.Init(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the link.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "close the link",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// StatusCmd prints the session state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "show the session state",
		Func: func(c *ishell.Context) {
			c.Println(ShellFrom(c).Status())
		},
	}
)

// Main parses flags and the session file and runs the shell until ctx
// is done or the command completes.
func Main(ctx context.Context) error {
	flag.Parse()
	conf := config.Default()
	if err := conf.Load(flag.CommandLine); err != nil {
		return err
	}
	return New(ctx, conf).WithAutoInit(true).Run(flag.Args()...)
}
