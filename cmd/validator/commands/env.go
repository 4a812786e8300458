// Package commands implements the validator subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/UCL-RITS/Submitty/internal/config"
	"github.com/UCL-RITS/Submitty/internal/grading"
	"github.com/UCL-RITS/Submitty/internal/store"
)

// SettingsPath returns the --config flag value at execution time.
type SettingsPath func() string

// runtime is what every command builds from the settings.
type runtime struct {
	settings *config.Settings
	logger   *slog.Logger
	grader   *grading.Grader
	batch    *grading.Batch
	history  *store.HistoryStore
}

func newRuntime(ctx context.Context, path SettingsPath, logOut io.Writer, withHistory bool) (*runtime, error) {
	settings, err := config.LoadSettings(path())
	if err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	logger := config.NewLogger(settings.Log, logOut)

	grader := grading.NewGrader(nil)
	rt := &runtime{
		settings: settings,
		logger:   logger,
		grader:   grader,
		batch:    grading.NewBatch(grader, settings.Grading.Parallelism),
	}

	if withHistory && settings.History.Enabled() {
		hs, err := openHistory(ctx, settings.History)
		if err != nil {
			return nil, err
		}
		rt.history = hs
		logger.Debug("award history enabled", "driver", settings.History.Driver)
	}
	return rt, nil
}

func openHistory(ctx context.Context, hs config.HistorySettings) (*store.HistoryStore, error) {
	driver, err := store.ParseDriver(hs.Driver)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, driver, hs.DSN)
	if err != nil {
		return nil, fmt.Errorf("open award history: %w", err)
	}
	h, err := store.NewHistoryStore(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (rt *runtime) Close() error {
	if rt.history != nil {
		return rt.history.Close()
	}
	return nil
}
