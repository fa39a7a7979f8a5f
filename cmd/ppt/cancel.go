package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gumaertl2/PPT-sub001/internal/backend"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [task]",
	Short: "Ask a running ppt process to stop",
	Long: `Ask a 'ppt run', 'ppt correct' or 'ppt watch' in another terminal to stop.

Automated runs stop before their next chunk; chunks already committed
stay. Without a task, whatever is running is canceled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		inbox, err := backend.NewInbox(cfg.Backend.InboxDir, nil)
		if err != nil {
			return err
		}
		task := ""
		if len(args) == 1 {
			task = args[0]
		}
		if err := inbox.RequestCancel(task); err != nil {
			return fmt.Errorf("request cancel: %w", err)
		}
		if task == "" {
			task = "all tasks"
		}
		fmt.Printf("%s cancel requested for %s\n", okMark(), task)
		return nil
	},
}
