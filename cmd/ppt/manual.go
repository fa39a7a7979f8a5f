package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gumaertl2/PPT-sub001/internal/workflow"
)

var (
	promptStdout bool
	promptOut    string
)

var promptCmd = &cobra.Command{
	Use:   "prompt <task>",
	Short: "Write the next manual prompt of a task",
	Long: `Start or resume the manual execution of a task and write the prompt of
the chunk awaiting an answer to the outbox.

Paste the prompt into any chat model, save its JSON answer under the
printed response path, and run 'ppt ingest' (or keep 'ppt watch' running).`,
	Args: cobra.ExactArgs(1),
	RunE: runPrompt,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <task> [response.json]",
	Short: "Submit a pasted answer for the pending manual chunk",
	Long: `Validate a model answer for the chunk awaiting an answer and commit it.
Without a file, or with "-", the answer is read from stdin.

A rejected answer fails the execution; the next 'ppt prompt' or
'ppt ingest' resumes at the same chunk.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runIngest,
}

func init() {
	promptCmd.Flags().BoolVar(&promptStdout, "stdout", false, "print the prompt instead of writing it to the outbox")
	promptCmd.Flags().StringVar(&promptOut, "out", "", "write the prompt into this directory instead of the outbox")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appOptions{request: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.task(args[0]); err != nil {
		return err
	}

	m, err := a.orch.BeginManual(args[0], nil)
	if err != nil {
		return err
	}
	if promptStdout {
		text, err := m.NextPrompt()
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}
	if promptOut != "" {
		text, err := m.NextPrompt()
		if err != nil {
			return err
		}
		index, total := m.Chunk()
		if err := os.MkdirAll(promptOut, 0755); err != nil {
			return err
		}
		path := filepath.Join(promptOut, fmt.Sprintf("%s-%dof%d.md", m.Task(), index+1, total))
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return fmt.Errorf("write prompt: %w", err)
		}
		printStatus("→", fmt.Sprintf("%s chunk %d/%d prompt: %s", m.Task(), index+1, total, path), color.FgCyan)
		return nil
	}
	return writeNextPrompt(a, m)
}

// writeNextPrompt writes the pending chunk's prompt to the outbox and
// tells the user where the answer goes.
func writeNextPrompt(a *app, m *workflow.ManualRun) error {
	text, err := m.NextPrompt()
	if err != nil {
		return err
	}
	index, total := m.Chunk()
	path, err := a.inbox.WritePrompt(m.Task(), index, total, text)
	if err != nil {
		return err
	}
	printStatus("→", fmt.Sprintf("%s chunk %d/%d prompt: %s", m.Task(), index+1, total, path), color.FgCyan)
	fmt.Printf("  save the answer as %s\n", a.inbox.ResponsePath(m.Task(), index, total))
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if len(args) < 2 || args[1] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[1])
	}
	if err != nil {
		return fmt.Errorf("read answer: %w", err)
	}

	a, err := openApp(cmd.Context(), appOptions{request: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.task(args[0]); err != nil {
		return err
	}

	m, err := a.orch.BeginManual(args[0], nil)
	if err != nil {
		return err
	}
	rep, err := m.Submit(string(raw))
	printReport(rep)
	if err != nil {
		if rep != nil {
			return errors.New("answer rejected; fix it and ingest again")
		}
		return err
	}
	if m.Done() {
		return nil
	}
	return writeNextPrompt(a, m)
}
