package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/play-deck/internal/fsutil"
	"github.com/asheshgoplani/play-deck/internal/reformat"
)

func newFmtCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt [file|-]",
		Short: "Format a program with the service's formatter",
		Long: `Formats a Go program on the playground service and prints the result.
With no file, or -, the source is read from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstArg(args)
			if write && (path == "" || path == stdinPath) {
				return errors.New("-w needs a file")
			}
			if path == "" {
				path = stdinPath
			}

			prog, err := loadProgram(path, "", 0, 0, a.in)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			formatted, err := reformat.NewCoordinator(client).Format(cmd.Context(), prog.Source)
			if err != nil {
				return fmt.Errorf("format %s: %w", prog.Title, err)
			}

			if !write {
				_, err := io.WriteString(a.out, formatted)
				return err
			}
			if formatted == prog.Source {
				return nil
			}
			return replaceFile(path, formatted)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result to the file instead of printing it")
	return cmd
}

// replaceFile swaps in new content, keeping the file mode.
func replaceFile(path, content string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, []byte(content), info.Mode().Perm())
}
