package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/term"

	"ohmebridge/config"
	"ohmebridge/internal/drivers/ohme"
	"ohmebridge/internal/logging"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

const commandTimeout = 90 * time.Second

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitRejected = 3
)

const usage = `Usage: ohmectl [flags] <command> [args]

Commands:
  status       show charger state
  schedule     show the charge window inferred from the charge graph
  start        start a max-rate charge now
  stop         stop charging
  resume       resume a stopped charge
  amps N       limit charging current to the nearest tier at or below N amps
  login        check the account credentials
  version      print the version

Configuration is read from -config (JSON or YAML) or from OHME_* environment
variables. The password is prompted for when not configured.

Flags:
`

type options struct {
	configPath string
	jsonMode   bool
	plainMode  bool
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	flags := flag.NewFlagSet("ohmectl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flags.BoolVar(&opts.jsonMode, "json", false, "Print JSON")
	flags.BoolVar(&opts.plainMode, "plain", false, "Print plain text without colors")
	flags.BoolVar(&opts.verbose, "v", false, "Log backend traffic to stderr")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return exitUsage
	}

	command, rest := flags.Arg(0), flags.Args()[1:]
	if command == "version" {
		fmt.Fprintf(stdout, "ohmectl %s\n", version)
		return exitOK
	}

	out := newPrinter(stdout, opts.jsonMode, opts.plainMode || !isTTY(stdout))

	var amps int
	switch command {
	case "status", "schedule", "start", "stop", "resume", "login":
		if len(rest) != 0 {
			fmt.Fprintf(stderr, "ohmectl: %s takes no arguments\n", command)
			return exitUsage
		}
	case "amps":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "ohmectl: amps takes exactly one argument")
			return exitUsage
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(stderr, "ohmectl: invalid current %q\n", rest[0])
			return exitUsage
		}
		amps = n
	default:
		fmt.Fprintf(stderr, "ohmectl: unknown command %q\n", command)
		flags.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "ohmectl: %v\n", err)
		return exitUsage
	}
	if cfg.Password == "" {
		password, err := promptPassword(stderr, cfg.Email)
		if err != nil {
			fmt.Fprintf(stderr, "ohmectl: %v\n", err)
			return exitUsage
		}
		cfg.Password = password
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewLogger(logging.LoggerConfig{Format: "text", Level: level, Output: stderr})

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cli := newClient(cfg, logger)
	if err := cli.auth.SignIn(ctx, cfg.Password); err != nil {
		fmt.Fprintf(stderr, "ohmectl: sign-in failed: %v\n", err)
		return exitCode(err)
	}

	switch command {
	case "login":
		return cli.login(ctx, out, stderr)
	case "status":
		return cli.status(ctx, out, stderr)
	case "schedule":
		return cli.schedule(ctx, out, stderr)
	case "start":
		return cli.command(ctx, out, stderr, "start", cli.charger.StartCharge)
	case "stop":
		return cli.command(ctx, out, stderr, "stop", cli.charger.StopCharge)
	case "resume":
		return cli.command(ctx, out, stderr, "resume", cli.charger.ResumeCharge)
	default:
		return cli.command(ctx, out, stderr, "amps", func(ctx context.Context) (bool, error) {
			return cli.charger.SwitchAmperage(ctx, amps)
		})
	}
}

type client struct {
	auth    *ohme.AuthSession
	charger *ohme.Charger
}

func newClient(cfg *config.OhmeConfig, logger *slog.Logger) *client {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}
	auth := ohme.NewAuthSession(ohme.AuthConfig{
		APIKey:         cfg.APIKey,
		Email:          cfg.Email,
		IdentityURL:    cfg.IdentityURL,
		SecureTokenURL: cfg.SecureTokenURL,
		HTTPClient:     httpClient,
		Logger:         logger,
	})
	return &client{
		auth: auth,
		charger: ohme.NewCharger(auth, ohme.Config{
			BaseURL:    cfg.BaseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
	}
}

func (c *client) login(ctx context.Context, out *printer, stderr io.Writer) int {
	if err := c.auth.EnsureFresh(ctx); err != nil {
		fmt.Fprintf(stderr, "ohmectl: %v\n", err)
		return exitCode(err)
	}
	cred, _ := c.auth.Credential()
	out.login(c.auth.Email(), cred.ExpiresAt)
	return exitOK
}

func (c *client) status(ctx context.Context, out *printer, stderr io.Writer) int {
	err := c.charger.Refresh(ctx)
	if err != nil && !errors.Is(err, ohme.ErrNoChargeSession) {
		fmt.Fprintf(stderr, "ohmectl: %v\n", err)
		return exitCode(err)
	}
	out.state(c.charger.State(), time.Now())
	return exitOK
}

func (c *client) schedule(ctx context.Context, out *printer, stderr io.Writer) int {
	boundaries, err := c.charger.ChargeTimes(ctx)
	if err != nil && !errors.Is(err, ohme.ErrNoChargeSession) {
		fmt.Fprintf(stderr, "ohmectl: %v\n", err)
		return exitCode(err)
	}
	out.schedule(ohme.ChargeWindow{Boundaries: boundaries}, time.Now())
	return exitOK
}

func (c *client) command(ctx context.Context, out *printer, stderr io.Writer, name string, fn func(context.Context) (bool, error)) int {
	// Commands address the device of the active session
	if err := c.charger.Refresh(ctx); err != nil {
		fmt.Fprintf(stderr, "ohmectl: %v\n", err)
		return exitCode(err)
	}

	accepted, err := fn(ctx)
	if err != nil && !accepted {
		fmt.Fprintf(stderr, "ohmectl: %s failed: %v\n", name, err)
		return exitCode(err)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ohmectl: warning: %v\n", err)
	}

	out.result(name, accepted, c.charger.State())
	if !accepted {
		return exitRejected
	}
	return exitOK
}

func loadConfig(path string) (*config.OhmeConfig, error) {
	if path == "" {
		return config.LoadOhmeFromEnv()
	}
	return config.LoadOhme(path)
}

func promptPassword(w io.Writer, email string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no password configured (set OHME_PASSWORD)")
	}

	fmt.Fprintf(w, "Password for %s: ", email)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func exitCode(err error) int {
	if errors.Is(err, ohme.ErrInvalidCredentials) {
		return exitUsage
	}
	return exitFailure
}
