package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/internal/backend"
	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/internal/logging"
	"github.com/gumaertl2/PPT-sub001/internal/resolve"
	"github.com/gumaertl2/PPT-sub001/internal/state"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/internal/workflow"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// appOptions selects what a command needs opened.
type appOptions struct {
	// request loads the trip request; commands that only read state skip it.
	request bool
	// backend builds the configured generation backend.
	backend bool
	// recover closes out automated steps a crashed process left running.
	recover bool
}

// app holds everything a command works with. Close releases it.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *state.DB
	store   *store.Store
	reg     *tasks.Registry
	req     *models.TripRequest
	inbox   *backend.Inbox
	tracker *backend.TokenTracker
	events  *workflow.EventEmitter
	orch    *workflow.Orchestrator
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(logging.Config{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
		JSON:  cfg.Logging.JSON,
		Quiet: !verbose,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, tracker: backend.NewTokenTracker()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// An empty store path keeps everything in memory for this process.
	if cfg.Store.Path == "" {
		a.store = store.New(store.WithLogger(log))
	} else if err := a.openDB(opts.recover); err != nil {
		return nil, err
	}
	a.reg, err = tasks.NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	a.inbox, err = backend.NewInbox(cfg.Backend.InboxDir, log)
	if err != nil {
		return nil, err
	}
	if opts.request {
		a.req, err = models.LoadRequest(requestPath)
		if err != nil {
			return nil, err
		}
	}

	var inv backend.Invoker
	if opts.backend {
		inv, err = backend.New(ctx, cfg, a.tracker, log)
		if err != nil {
			return nil, err
		}
	}

	a.events = workflow.NewEventEmitter(256, log)
	wopts := []workflow.Option{
		workflow.WithInvoker(inv),
		workflow.WithEvents(a.events),
		workflow.WithProcessor(resolve.New(a.store,
			resolve.WithMinMatchLength(cfg.Resolve.MinMatchLength),
			resolve.WithLogger(log))),
		workflow.WithCancelCheck(a.inbox.CancelRequested),
		workflow.WithLogger(log),
	}
	if a.db != nil {
		wopts = append(wopts, workflow.WithSteps(a.db))
	}
	a.orch = workflow.New(a.reg, a.store, a.req, wopts...)
	ok = true
	return a, nil
}

// openDB opens the project database and loads the store from it.
func (a *app) openDB(recoverSteps bool) error {
	var err error
	a.db, err = state.OpenWithDriver(a.cfg.Store.Path, a.cfg.Store.Driver)
	if err != nil {
		return err
	}
	if err := a.db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if recoverSteps {
		n, err := state.NewRecoveryManager(a.db, a.log).Recover()
		if err != nil {
			return fmt.Errorf("recover interrupted steps: %w", err)
		}
		if n > 0 {
			fmt.Printf("%s closed %d interrupted step(s); rerun them to continue\n", warnMark(), n)
		}
	}
	a.store, err = store.Open(a.db, store.WithLogger(a.log))
	return err
}

// Close flushes the log and closes the database.
func (a *app) Close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close database: %v\n", err)
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// task resolves a task id given on the command line.
func (a *app) task(id string) (tasks.AgentTask, error) {
	t, ok := a.reg.Get(id)
	if !ok {
		return tasks.AgentTask{}, fmt.Errorf("unknown task %q (known: %v)", id, a.reg.Order())
	}
	return t, nil
}
