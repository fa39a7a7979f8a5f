package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gumaertl2/PPT-sub001/internal/backend"
)

var watchCmd = &cobra.Command{
	Use:   "watch <task>",
	Short: "Ingest manual answers as they are saved to the inbox",
	Long: `Write the pending prompt of a task, then watch the inbox directory and
ingest every answer saved for the task, writing the next prompt each time,
until the task is committed.

Rejected answers are moved to inbox/rejected and the same chunk is asked
for again. Ctrl-C or 'ppt cancel <task>' stops watching.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	taskID := args[0]
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{request: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.task(taskID); err != nil {
		return err
	}
	a.inbox.ClearCancel(taskID)

	m, err := a.orch.BeginManual(taskID, nil)
	if err != nil {
		return err
	}
	if err := writeNextPrompt(a, m); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	watchCtx, stop := context.WithCancel(ctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return a.inbox.Watch(watchCtx, taskID, func(d backend.Delivery) error {
			fmt.Printf("\ningesting %s\n", d.Path)
			rep, err := m.Submit(string(d.Data))
			printReport(rep)
			if err != nil {
				// Resume the same chunk in a new execution.
				next, berr := a.orch.BeginManual(taskID, nil)
				if berr != nil {
					return berr
				}
				m = next
				if werr := writeNextPrompt(a, m); werr != nil {
					return werr
				}
				return err
			}
			if m.Done() {
				return backend.ErrStopWatching
			}
			return writeNextPrompt(a, m)
		})
	})
	g.Go(func() error {
		return a.inbox.WatchSignals(watchCtx, func(task string) {
			if task == "" || task == taskID {
				fmt.Println("\ncancel requested")
				a.inbox.ClearCancel(taskID)
				stop()
			}
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if m.Done() {
		printStatus("✓", taskID+" committed", color.FgGreen)
	}
	return nil
}
