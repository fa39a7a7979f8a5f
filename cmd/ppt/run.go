package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/workflow"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

var (
	runAll  bool
	runTier string
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run tasks against the configured backend",
	Long: `Run one or more tasks in automated mode, in the order given.

With --all, every task without a committed execution runs in dependency
order and the run stops at the first failure. A task whose dependencies
are not committed is reported and not started.

Ctrl-C, or 'ppt cancel' from another terminal, stops the running task
before its next chunk; chunks already committed stay.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every task that is not committed yet")
	runCmd.Flags().StringVar(&runTier, "tier", "", "override the model tier (fast, balanced, deep)")
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt, stopping after the current chunk...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// printEvents prints progress lines until the emitter is closed.
func printEvents(events <-chan workflow.Event) {
	for e := range events {
		switch e.Type {
		case workflow.EventChunkCommitted:
			fmt.Printf("  %s chunk %d/%d committed: %s\n", e.TaskID, e.Chunk+1, e.Total, e.Message)
		case workflow.EventStateChanged:
			if verbose {
				fmt.Printf("  %s -> %s\n", e.TaskID, e.State)
			}
		}
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	if !runAll && len(args) == 0 {
		return errors.New("name at least one task, or use --all")
	}
	tier := models.Tier(runTier)
	if runTier != "" && !tier.Valid() {
		return fmt.Errorf("invalid tier %q: must be fast, balanced or deep", runTier)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{request: true, backend: true, recover: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cfg.Backend.Provider == config.ProviderManual {
		return errors.New("backend.provider is manual; use 'ppt prompt' and 'ppt ingest'")
	}
	for _, id := range args {
		if _, err := a.task(id); err != nil {
			return err
		}
	}
	printed := make(chan struct{})
	go func() {
		printEvents(a.events.Events())
		close(printed)
	}()

	var reports []*workflow.Report
	if runAll {
		reports, err = a.orch.RunAll(ctx)
	} else {
		for _, id := range args {
			var rep *workflow.Report
			rep, err = a.orch.Run(ctx, id, workflow.RunOptions{Tier: tier})
			if rep != nil {
				reports = append(reports, rep)
			}
			if err != nil && (failure.IsFatalForRun(err) || ctx.Err() != nil) {
				break
			}
		}
	}
	a.events.Close()
	<-printed
	for _, id := range a.reg.Order() {
		a.inbox.ClearCancel(id)
	}

	fmt.Println()
	failed := 0
	for _, rep := range reports {
		printReport(rep)
		if rep.State != models.StepCommitted {
			failed++
		}
	}
	printUsage(a)
	if failed > 0 {
		return fmt.Errorf("%d of %d task(s) did not commit", failed, len(reports))
	}
	return err
}

func printUsage(a *app) {
	if a.tracker.Calls() == 0 {
		return
	}
	in, out := a.tracker.Total()
	fmt.Printf("\n%d call(s), %s input / %s output tokens\n", a.tracker.Calls(), formatNumber(in), formatNumber(out))
	if verbose {
		for _, u := range a.tracker.ByModel() {
			fmt.Printf("  %s: %d call(s), %s / %s\n", u.Model, u.Calls, formatNumber(u.InputTokens), formatNumber(u.OutputTokens))
		}
	}
}
