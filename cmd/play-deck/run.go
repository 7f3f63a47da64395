package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/play-deck/internal/config"
	"github.com/asheshgoplani/play-deck/internal/console"
	"github.com/asheshgoplani/play-deck/internal/reformat"
	"github.com/asheshgoplani/play-deck/internal/session"
	"github.com/asheshgoplani/play-deck/internal/watch"
)

type runFlags struct {
	example    string
	watch      bool
	format     bool
	transcript string
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Run a program and print its output",
		Long: `Runs a program on the playground service and prints its output.

Lines read from standard input are sent to the program each time it waits for
input. The exit status is 0 when the program completes and 1 otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHeadless(cmd, &f, args)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.example, "example", "e", "", "run a bundled example (fuzzy name match)")
	fs.BoolVarP(&f.watch, "watch", "w", false, "run again whenever the file is saved")
	fs.BoolVarP(&f.format, "format", "f", false, "format the source before running it")
	fs.StringVarP(&f.transcript, "transcript", "o", "", "also save the output to this file")
	return cmd
}

// headless is one configured run pipeline.
type headless struct {
	app        *app
	runner     *console.Runner
	formatter  *reformat.Coordinator
	transcript *session.Transcript
	flags      *runFlags
}

func (a *app) runHeadless(cmd *cobra.Command, f *runFlags, args []string) error {
	path := firstArg(args)
	if f.watch && (path == "" || path == stdinPath) {
		return errors.New("--watch needs a file")
	}

	prog, err := loadProgram(path, f.example, 0, 0, a.in)
	if err != nil {
		return err
	}
	if path == "" && f.example == "" {
		return errNoSource
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sink := console.NewSink(a.out,
		console.WithInputEcho(!isTerminal(a.in)),
		console.WithClearScreen(isTerminal(a.out)))
	var out session.OutputSink = sink
	var transcript *session.Transcript
	if f.transcript != "" {
		transcript = session.NewTranscript(sink, session.DefaultTranscriptLines)
		out = transcript
	}
	mgr := session.NewManager(client, out, session.WithContext(ctx))
	defer mgr.Close()

	h := &headless{
		app:        a,
		runner:     console.NewRunner(mgr, sink),
		formatter:  reformat.NewCoordinator(client),
		transcript: transcript,
		flags:      f,
	}

	// Standard input already holds the source.
	input := a.in
	if path == stdinPath {
		input = nil
	}

	if f.watch {
		return h.watch(ctx, path, prog.Source)
	}

	res, err := h.run(ctx, prog.Source, input)
	if saveErr := h.saveTranscript(); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted: the sink already printed the cancellation notice.
			return exitError{code: 130}
		}
		return err
	}
	if code := res.ExitCode(); code != 0 {
		return exitError{code: code}
	}
	return nil
}

// run formats source when asked and runs it to the end. A rejected run has
// already been reported through the sink.
func (h *headless) run(ctx context.Context, source string, in io.Reader) (console.Result, error) {
	if h.flags.format {
		formatted, err := h.formatter.Format(ctx, source)
		if err != nil {
			// Run the unformatted source; the service reports the same problem.
			fmt.Fprintf(h.app.errOut, "format failed: %v\n", err)
		} else {
			source = formatted
		}
	}

	res, err := h.runner.Run(ctx, source, in)
	if err != nil && res.ID == "" && ctx.Err() == nil {
		cliLog.Debug("run_rejected", slog.String("error", err.Error()))
		return res, nil
	}
	return res, err
}

// watch runs source, then again for each saved version of path, until ctx is
// cancelled. A save during a run replaces that run. Programs get no input.
func (h *headless) watch(ctx context.Context, path, source string) error {
	settings := config.GetRunSettings()
	w, err := watch.New(watch.Config{
		Path:        path,
		Debounce:    settings.GetDebounce(),
		MinInterval: settings.GetMinInterval(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()
	changes, err := w.Start()
	if err != nil {
		return err
	}

	type outcome struct {
		res console.Result
		err error
	}

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan outcome, 1)
		go func(src string) {
			res, err := h.run(runCtx, src, nil)
			done <- outcome{res: res, err: err}
		}(source)

		var next string
		select {
		case o := <-done:
			cancel()
			if o.err != nil && ctx.Err() == nil {
				fmt.Fprintf(h.app.errOut, "run failed: %v\n", o.err)
			}
			if err := h.saveTranscript(); err != nil {
				fmt.Fprintf(h.app.errOut, "%v\n", err)
			}
			select {
			case c, ok := <-changes:
				if !ok {
					return nil
				}
				next = c.Source
			case <-ctx.Done():
				return nil
			}
		case c, ok := <-changes:
			cancel()
			<-done
			if !ok {
				return nil
			}
			next = c.Source
		case <-ctx.Done():
			cancel()
			<-done
			return h.saveTranscript()
		}

		cliLog.Info("watch_rerun", slog.String("path", w.Path()))
		source = next
	}
}

func (h *headless) saveTranscript() error {
	if h.transcript == nil {
		return nil
	}
	if err := h.transcript.Save(h.flags.transcript); err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}
