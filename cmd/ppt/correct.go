package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/internal/workflow"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

var (
	correctKeep     []string
	correctAdd      int
	correctFeedback string
	correctManual   bool
)

var correctCmd = &cobra.Command{
	Use:   "correct <task>",
	Short: "Re-run a committed task with feedback",
	Long: `Re-run a committed, correctable task (routeArchitect).

Entities named with --keep stay exactly as they are; the task's other
output is discarded and exactly --add new variants are asked for. Ids are
listed by 'ppt entities --task <task>'.

With --manual the correction prompt is written to the outbox instead of
being sent to the backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runCorrect,
}

func init() {
	correctCmd.Flags().StringSliceVar(&correctKeep, "keep", nil, "entity ids to keep verbatim")
	correctCmd.Flags().IntVar(&correctAdd, "add", 1, "number of new variants to generate")
	correctCmd.Flags().StringVar(&correctFeedback, "feedback", "", "what should change")
	correctCmd.Flags().BoolVar(&correctManual, "manual", false, "write the correction prompt for the manual path")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	corr := workflow.Correction{
		Feedback:           correctFeedback,
		Keep:               correctKeep,
		AdditionalVariants: correctAdd,
	}
	if err := corr.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx, appOptions{request: true, backend: !correctManual, recover: !correctManual})
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.task(args[0]); err != nil {
		return err
	}

	if correctManual {
		m, err := a.orch.BeginManual(args[0], &corr)
		if err != nil {
			return err
		}
		return writeNextPrompt(a, m)
	}
	if a.cfg.Backend.Provider == config.ProviderManual {
		return errors.New("backend.provider is manual; use --manual")
	}

	rep, err := a.orch.Correct(ctx, args[0], corr)
	a.inbox.ClearCancel(args[0])
	printReport(rep)
	printUsage(a)
	if err != nil {
		return err
	}
	if rep.State != models.StepCommitted {
		return fmt.Errorf("%s did not commit", args[0])
	}
	return nil
}
