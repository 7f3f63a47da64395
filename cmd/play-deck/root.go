package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asheshgoplani/play-deck/internal/config"
	"github.com/asheshgoplani/play-deck/internal/logging"
	"github.com/asheshgoplani/play-deck/internal/transport"
	"github.com/asheshgoplani/play-deck/internal/ui"
)

var cliLog = logging.ForComponent(logging.CompCLI)

// exitError carries a process exit status. The output already explains it,
// so main prints nothing.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds the global flags and the process streams shared by all commands.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	server  string
	theme   string
	timeout time.Duration
	debug   bool
	noColor bool

	closeLog func()
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	var tf tuiFlags
	root := &cobra.Command{
		Use:   "play-deck [file]",
		Short: "A terminal client for a remote Go playground",
		Long: `play-deck edits and runs Go programs on a playground service.

Without a subcommand it opens the full-screen editor. When standard input or
output is not a terminal it behaves like "play-deck run".`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd, &tf, args)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.server, "server", "s", "",
		"playground service URL (default: $PLAYDECK_SERVER, then config.toml)")
	pf.StringVar(&a.theme, "theme", "", `color theme, "dark" or "light" (default from config.toml)`)
	pf.DurationVar(&a.timeout, "timeout", 0, "request timeout (default from config.toml, 30s)")
	pf.BoolVar(&a.debug, "debug", false, "write a debug log (path set in config.toml [logs])")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colors")

	tf.bind(root)

	root.AddCommand(
		newTUICmd(a),
		newRunCmd(a),
		newFmtCmd(a),
		newExamplesCmd(a),
		newPingCmd(a),
	)
	return root
}

// setup runs before every command: debug log, color profile and theme.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logs := config.GetLogSettings()
	debug := a.debug || logs.Debug
	if debug && logs.Path != "" {
		if err := os.MkdirAll(filepath.Dir(logs.Path), 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	closeLog, err := logging.InitFile(logs.Path, debug)
	if err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	a.closeLog = closeLog

	if a.noColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	theme := a.theme
	if theme == "" {
		theme = config.GetTheme()
	}
	switch theme {
	case "dark", "light":
		ui.ApplyTheme(theme)
	default:
		return fmt.Errorf("unknown theme %q (want dark or light)", theme)
	}

	cliLog.Debug("command_start",
		slog.String("command", cmd.CommandPath()),
		slog.String("theme", theme))
	return nil
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.closeLog != nil {
		a.closeLog()
		a.closeLog = nil
	}
}

// client builds a transport client from the flags and config.
func (a *app) client() (*transport.Client, error) {
	server := a.server
	if server == "" {
		server = config.GetServer()
	}
	timeout := a.timeout
	if timeout <= 0 {
		timeout = config.GetHTTPSettings().GetTimeout()
	}
	c, err := transport.NewClient(server, transport.WithTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("server %q: %w", server, err)
	}
	return c, nil
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalSize returns the size of w when it is a terminal, or zeros.
func terminalSize(w io.Writer) (cols, rows int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, 0
	}
	cols, rows, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0
	}
	return cols, rows
}
