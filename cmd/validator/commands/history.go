package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/UCL-RITS/Submitty/internal/store"
)

var errHistoryDisabled = errors.New("award history is disabled; set history.driver")

// NewHistoryCommand prints the recent grades and statistics of one test case.
func NewHistoryCommand(path SettingsPath) *cobra.Command {
	var window int

	cmd := &cobra.Command{
		Use:   "history <test-name>",
		Short: "Show the grade history of a test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), path, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.history == nil {
				return errHistoryDisabled
			}
			return printHistory(cmd, rt.history, args[0], window)
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", 20, "number of recent grades to show")
	return cmd
}

func printHistory(cmd *cobra.Command, h *store.HistoryStore, testName string, window int) error {
	grades, err := h.QueryWindow(cmd.Context(), testName, window)
	if err != nil {
		return err
	}
	mean, stddev, count, err := h.Stats(cmd.Context(), testName)
	if err != nil {
		return err
	}
	return writeHistory(cmd.OutOrStdout(), testName, grades, mean, stddev, count)
}

func writeHistory(w io.Writer, testName string, grades []float64, mean, stddev float64, count int) error {
	if _, err := fmt.Fprintf(w, "%s: %s grades, mean %.3f, stddev %.3f\n",
		testName, humanize.Comma(int64(count)), mean, stddev); err != nil {
		return err
	}
	for i, g := range grades {
		if _, err := fmt.Fprintf(w, "%3d  %.3f\n", i+1, g); err != nil {
			return err
		}
	}
	return nil
}
