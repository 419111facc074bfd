// Command dashctl is the terminal client for the dashboard API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gymii/dashboard/internal/client"
	"github.com/gymii/dashboard/internal/config"
	"github.com/gymii/dashboard/internal/errreport"
	"github.com/gymii/dashboard/internal/observability"
	"github.com/gymii/dashboard/internal/render"
	"github.com/gymii/dashboard/internal/session"
)

const usage = `usage: dashctl <command> [flags] [args]

commands:
  login -email EMAIL [-password PASSWORD]
  logout
  whoami
  kpi
  refresh
  users [-q TERM] [-page N] [-size N]
  user ID
  sessions [-page N] ID
  comments list ID
  comments add [-mood MOOD] ID TEXT...
  comments edit [-text TEXT] [-mood MOOD] [-clear-mood] COMMENT_ID USER_ID
  comments rm COMMENT_ID USER_ID
  retention [-period d1|d7|d14]
  cohorts [-view daily|weekly|monthly]
  cost [-remote] [-watch] FILE
`

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitCritical = 3
)

var errUsage = errors.New("usage")

type app struct {
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
	reporter *render.DialogReporter

	cfg     *config.ClientConfig
	store   *session.Store
	api     *client.Cached
	initErr error
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]struct {
	run     command
	offline bool
}{
	"login":     {run: cmdLogin},
	"logout":    {run: cmdLogout},
	"whoami":    {run: cmdWhoami},
	"kpi":       {run: cmdKPI},
	"refresh":   {run: cmdRefresh},
	"users":     {run: cmdUsers},
	"user":      {run: cmdUser},
	"sessions":  {run: cmdSessions},
	"comments":  {run: cmdComments},
	"retention": {run: cmdRetention},
	"cohorts":   {run: cmdCohorts},
	"cost":      {run: cmdCost, offline: true},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	a := &app{
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		logger:   observability.NewLogger(stderr, "warn", "text"),
		reporter: render.NewDialogReporter(stderr),
	}

	if err := a.init(); err != nil {
		if !cmd.offline {
			a.report(ctx, "Startup", err)
			return a.exitCode()
		}
		a.initErr = err
	}

	err := cmd.run(ctx, a, args[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		fmt.Fprint(stderr, usage)
		return exitUsage
	default:
		a.report(ctx, title(args[0]), err)
		return a.exitCode()
	}
}

// init wires config, the session store and the API client.
func (a *app) init() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("%w: %v", errreport.ErrInit, err)
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(a.stderr, cfg.LogLevel, "text")

	store, err := session.New(session.Config{
		SupabaseURL: cfg.SupabaseURL,
		AnonKey:     cfg.SupabaseAnonKey,
		Path:        cfg.SessionPath,
	})
	if err != nil {
		return err
	}
	a.store = store

	api, err := client.New(cfg.BaseURL(), store, client.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return err
	}
	a.api = client.NewCached(api)

	a.logger.Debug("dashctl ready", "api", cfg.BaseURL(), "session", cfg.SessionPath)
	return nil
}

// online returns the startup error for commands that need the API.
func (a *app) online() error {
	return a.initErr
}

func (a *app) report(ctx context.Context, title string, err error) {
	if errors.Is(err, session.ErrNotLoggedIn) {
		err = fmt.Errorf("%w; run \"dashctl login\" first", err)
	}
	a.reporter.Report(ctx, errreport.NewEvent(title, err))
}

func (a *app) exitCode() int {
	if a.reporter.Critical() {
		return exitCritical
	}
	return exitError
}

func (a *app) print(s string) {
	fmt.Fprintln(a.stdout, s)
}

func title(cmd string) string {
	if cmd == "" {
		return "Error"
	}
	return strings.ToUpper(cmd[:1]) + cmd[1:] + " failed"
}
