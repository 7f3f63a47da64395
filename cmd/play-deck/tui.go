package main

import (
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/asheshgoplani/play-deck/internal/config"
	"github.com/asheshgoplani/play-deck/internal/examples"
	"github.com/asheshgoplani/play-deck/internal/reformat"
	"github.com/asheshgoplani/play-deck/internal/session"
	"github.com/asheshgoplani/play-deck/internal/ui"
	"github.com/asheshgoplani/play-deck/internal/watch"
)

type tuiFlags struct {
	example    string
	watch      bool
	run        bool
	transcript string
}

func (f *tuiFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.example, "example", "e", "", "load a bundled example (fuzzy name match)")
	fs.BoolVarP(&f.watch, "watch", "w", false, "reload and re-run the file whenever it is saved")
	fs.BoolVarP(&f.run, "run", "r", false, "run the program as soon as the editor opens")
	fs.StringVar(&f.transcript, "transcript", "", "where ctrl+t saves the output (default: play-deck-<time>.txt)")
}

func newTUICmd(a *app) *cobra.Command {
	var f tuiFlags
	cmd := &cobra.Command{
		Use:   "tui [file]",
		Short: "Open the full-screen editor (default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd, &f, args)
		},
	}
	f.bind(cmd)
	return cmd
}

// outputPaneSize estimates the output pane for a terminal of cols x rows,
// so examples can be sized before the first layout.
func outputPaneSize(cols, rows int) (int, int) {
	if cols <= 0 || rows <= 0 {
		return 0, 0
	}
	return max(cols-4, 0), max(rows/2-3, 0)
}

func (a *app) runTUI(cmd *cobra.Command, f *tuiFlags, args []string) error {
	if !isTerminal(a.in) || !isTerminal(a.out) {
		cliLog.Info("tui_headless_fallback")
		return a.runHeadless(cmd, &runFlags{
			example:    f.example,
			watch:      f.watch,
			transcript: f.transcript,
		}, args)
	}

	path := firstArg(args)
	if path == stdinPath {
		return errors.New("the editor cannot read source from standard input; use play-deck run -")
	}
	if f.watch && path == "" {
		return errors.New("--watch needs a file")
	}

	cols, rows := outputPaneSize(terminalSize(a.out))
	prog, err := loadProgram(path, f.example, cols, rows, a.in)
	if err != nil {
		return err
	}
	if path == "" && f.example == "" {
		name := config.GetUISettings().Example
		if name == "" {
			name = examples.Default
		}
		if prog, err = loadProgram("", name, cols, rows, nil); err != nil {
			return err
		}
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sink := ui.NewProgramSink()
	transcript := session.NewTranscript(sink, session.DefaultTranscriptLines)
	mgr := session.NewManager(client, transcript,
		session.WithStatusFunc(sink.StatusFunc()),
		session.WithContext(ctx))
	defer mgr.Close()

	runSettings := config.GetRunSettings()
	var (
		changes   <-chan watch.Change
		watchPath string
	)
	if f.watch {
		w, err := watch.New(watch.Config{
			Path:        path,
			Debounce:    runSettings.GetDebounce(),
			MinInterval: runSettings.GetMinInterval(),
		})
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
		if changes, err = w.Start(); err != nil {
			return err
		}
		watchPath = w.Path()
	}

	home := ui.NewHome(ui.Config{
		Context:        ctx,
		Manager:        mgr,
		Formatter:      reformat.NewCoordinator(client),
		Transcript:     transcript,
		TranscriptPath: f.transcript,
		Source:         prog.Source,
		Title:          prog.Title,
		WatchPath:      watchPath,
		Changes:        changes,
		AutoRun:        runSettings.GetAutoRunOnSave(),
		FormatOnRun:    runSettings.GetFormatOnRun(),
		RunOnStart:     f.run,
		HideHelp:       !config.GetUISettings().GetShowHelp(),
	})

	p := tea.NewProgram(home,
		tea.WithAltScreen(),
		tea.WithInput(a.in),
		tea.WithOutput(a.out))
	sink.Attach(p)

	cliLog.Info("tui_start",
		slog.String("server", client.BaseURL()),
		slog.String("title", prog.Title),
		slog.Bool("watch", f.watch))

	_, err = p.Run()
	home.Shutdown()
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
