package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/asheshgoplani/play-deck/internal/examples"
)

func newExamplesCmd(a *app) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "examples [query]",
		Short: "List the bundled example programs",
		Long: `Lists the bundled examples, or the ones matching query.
With --show, prints the source of the best match instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := firstArg(args)
			if show {
				if query == "" {
					return errors.New("--show needs an example name")
				}
				cols, rows := terminalSize(a.out)
				prog, err := loadProgram("", query, cols, rows, nil)
				if err != nil {
					return err
				}
				_, err = io.WriteString(a.out, prog.Source)
				return err
			}

			list := examples.All()
			if query != "" {
				list = examples.Find(query)
			}
			if len(list) == 0 {
				return fmt.Errorf("no example matches %q", query)
			}
			return writeExampleList(a.out, list)
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the source of the best match")
	return cmd
}

// writeExampleList prints one aligned row per example.
func writeExampleList(w io.Writer, list []examples.Example) error {
	width := 0
	for _, ex := range list {
		width = max(width, runewidth.StringWidth(ex.Name))
	}

	var b strings.Builder
	for _, ex := range list {
		b.WriteString(runewidth.FillRight(ex.Name, width))
		b.WriteString("  ")
		b.WriteString(ex.Title)
		if ex.Interactive {
			b.WriteString(" [input]")
		}
		if ex.Animated {
			b.WriteString(" [animated]")
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
