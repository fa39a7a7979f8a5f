package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every task",
	Long: `Display the latest execution of every task in dependency order.

Shows:
  - State, mode and chunk progress of each task
  - Dependencies that are not committed yet
  - Pending manual chunks and the last error
  - Entity counts per category`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	statuses, err := a.orch.Status()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(statuses))
	var problems []string
	for _, ts := range statuses {
		mode, chunks, updated := "", "", ""
		if s := ts.Step; s != nil {
			mode = string(s.Mode)
			chunks = fmt.Sprintf("%d/%d", s.ChunksDone, s.ChunksTotal)
			updated = formatAgo(time.Since(s.UpdatedAt))
			if s.State == models.StepFailed && s.Error != "" {
				hint := "fix and rerun"
				if s.Recoverable {
					hint = "rerun to continue"
				}
				problems = append(problems, fmt.Sprintf("%s: %s (%s)", ts.Task.ID, s.Error, hint))
			}
		}
		if mp := ts.Manual; mp != nil && ts.State != models.StepCommitted {
			chunks = fmt.Sprintf("%d/%d manual", mp.NextChunk, mp.TotalChunks)
		}
		rows = append(rows, []string{
			ts.Task.ID,
			color.New(stateColor(ts.State)).Sprint(string(ts.State)),
			mode,
			chunks,
			strings.Join(ts.Unmet, ", "),
			updated,
		})
	}
	fmt.Println(renderTable([]string{"task", "state", "mode", "chunks", "waiting for", "updated"}, rows, 5))

	for _, p := range problems {
		fmt.Printf("%s %s\n", failMark(), p)
	}

	counts := make([]string, 0, 6)
	for _, c := range []models.Category{
		models.CategorySight, models.CategoryRestaurant, models.CategoryHotel,
		models.CategoryRoute, models.CategoryDay, models.CategoryInfo,
	} {
		if n := len(a.store.ListByCategory(c)); n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, c))
		}
	}
	if len(counts) == 0 {
		fmt.Println("No entities yet. Run 'ppt run --all' or 'ppt prompt <task>' to start.")
		return nil
	}
	fmt.Printf("Entities: %s\n", strings.Join(counts, ", "))
	return nil
}

// formatAgo renders a duration as a short relative time.
func formatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
