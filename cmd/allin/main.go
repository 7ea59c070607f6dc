// Command allin is a CLI client for the AllIn authentication API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/and161185/allin/internal/authclient"
	"github.com/and161185/allin/internal/config"
	"github.com/and161185/allin/internal/errs"
	"github.com/and161185/allin/internal/loginflow"
	"github.com/and161185/allin/internal/model"
	"github.com/and161185/allin/internal/tokenstore"
	"github.com/and161185/allin/internal/uistate"
	"github.com/and161185/allin/internal/view"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app holds the wired components for one invocation.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	out    io.Writer
	tokens *tokenstore.Store
	client *authclient.Client
	ui     *uistate.Store
}

func newApp(cfg config.Config, log *zap.Logger, out io.Writer) *app {
	tokens := tokenstore.New(cfg.TokenPath(), cfg.Secure(), tokenstore.WithLogger(log))
	return &app{
		cfg:    cfg,
		log:    log,
		out:    out,
		tokens: tokens,
		client: authclient.New(cfg.BaseURL, tokens, authclient.WithLogger(log)),
		ui:     uistate.New(),
	}
}

func (a *app) controller() *loginflow.Controller {
	return loginflow.New(a.client, a.tokens, a.ui,
		loginflow.WithLogger(a.log),
		loginflow.WithTokenTTLDays(a.cfg.TokenTTLDays),
	)
}

// ---- logging ----

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `allin CLI
Usage:
  allin [-base-url URL] [-dir DIR] [-log-level LEVEL] <cmd> [args]

Commands:
  version
  register   -n <name> -e <email> -p <password>   (saves token, prints greeting)
  login      -e <email> -p <password>              (saves token, prints greeting)
  profile    -e <email>                            (uses saved token)
  status                                           (saved session details)
  logout                                           (removes saved token)
  open       <path>                                (/, /About, /login)
`)
}

// exit codes
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// ---- main ----

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}

	fs := flag.NewFlagSet("allin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "auth API base URL")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "config directory holding the session token")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}

	log, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "log level: %v\n", err)
		return exitUsage
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	a := newApp(cfg, log, stdout)
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "allin %s (%s)\n", version, buildDate)
		return exitOK
	case "register":
		return a.cmdSubmit(ctx, rest, stderr, true)
	case "login":
		return a.cmdSubmit(ctx, rest, stderr, false)
	case "profile":
		return a.cmdProfile(ctx, rest, stderr)
	case "status":
		return a.cmdStatus(stderr)
	case "logout":
		return a.cmdLogout(stderr)
	case "open":
		return a.cmdOpen(rest, stderr)
	default:
		usage(stderr)
		return exitUsage
	}
}

// fail prints err and returns the failure exit code.
func fail(w io.Writer, err error) int {
	var f *loginflow.Failure
	if errors.As(err, &f) {
		fmt.Fprintln(w, f.Message)
		return exitFail
	}
	fmt.Fprintln(w, err)
	return exitFail
}

func (a *app) cmdSubmit(ctx context.Context, args []string, stderr io.Writer, signUp bool) int {
	name := "login"
	if signUp {
		name = "register"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("e", "", "email")
	pass := fs.String("p", "", "password")
	var user *string
	if signUp {
		user = fs.String("n", "", "full name")
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	ctrl := a.controller()
	if signUp {
		ctrl.ToggleMode()
	}
	form := loginflow.Form{Email: *email, Password: *pass}
	if user != nil {
		form.Name = *user
	}

	a.ui.OpenLogin()
	screen := view.Attach(a.out, a.ui, a.log)
	defer screen.Detach()

	start := time.Now()
	if err := ctrl.Submit(ctx, form); err != nil {
		return fail(stderr, err)
	}
	a.log.Debug("submit done", zap.Duration("dur", time.Since(start)))
	if a.ui.Snapshot().Profile == nil {
		fmt.Fprintln(stderr, "signed in, but the profile could not be loaded")
	}
	return exitOK
}

func (a *app) cmdProfile(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("e", "", "email")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *email == "" {
		fmt.Fprintln(stderr, "need -e")
		return exitUsage
	}
	if _, ok := a.tokens.Token(); !ok {
		a.log.Info("fetching profile without a session token")
	}

	res := a.client.FetchProfile(ctx, *email)
	p := model.NewProfile(res)
	if p == nil {
		return fail(stderr, describe(res))
	}
	a.ui.SetProfileData(p)
	var v any
	_ = json.Unmarshal(p.Data, &v)
	printJSON(a.out, v)
	return exitOK
}

// describe turns a failed result into an error carrying the best message.
func describe(r model.Result) error {
	if m := r.Message(); m != "" {
		if r.Err != nil {
			return fmt.Errorf("%s: %w", m, r.Err)
		}
		return errors.New(m)
	}
	if r.Err != nil {
		return r.Err
	}
	return fmt.Errorf("request failed (status %d)", r.Status)
}

func (a *app) cmdStatus(stderr io.Writer) int {
	sess, ok := a.tokens.Inspect()
	if !ok {
		return fail(stderr, errs.ErrNoToken)
	}
	type status struct {
		Path      string `json:"path"`
		ExpiresAt string `json:"expires_at"`
		Secure    bool   `json:"secure"`
		Subject   string `json:"subject,omitempty"`
		TokenExp  string `json:"token_exp,omitempty"`
	}
	st := status{
		Path:      a.tokens.Path(),
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		Secure:    sess.Secure,
		Subject:   sess.Subject,
	}
	if !sess.TokenExp.IsZero() {
		st.TokenExp = sess.TokenExp.UTC().Format(time.RFC3339)
	}
	printJSON(a.out, st)
	return exitOK
}

func (a *app) cmdLogout(stderr io.Writer) int {
	if err := a.tokens.Clear(); err != nil {
		return fail(stderr, err)
	}
	a.ui.SetProfileData(nil)
	fmt.Fprintln(a.out, "ok")
	return exitOK
}

func (a *app) cmdOpen(args []string, stderr io.Writer) int {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	rt, err := view.NewRouter().Open(a.out, a.ui, path)
	if err != nil {
		return fail(stderr, err)
	}
	if rt.Name == "not-found" {
		return exitFail
	}
	return exitOK
}
