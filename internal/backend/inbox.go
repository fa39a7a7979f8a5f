package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrStopWatching is returned by a delivery handler to end Watch without error.
var ErrStopWatching = errors.New("stop watching")

// Delivery is one response file dropped into the inbox.
type Delivery struct {
	Path string
	Data []byte
}

// Inbox is the file exchange of the manual path: prompts are written to
// the outbox, pasted responses are picked up from the inbox, and cancel
// requests from other processes arrive as files under signals.
type Inbox struct {
	root string
	log  *zap.Logger
}

// NewInbox creates the exchange directories under root (normally .ppt).
func NewInbox(root string, log *zap.Logger) (*Inbox, error) {
	if log == nil {
		log = zap.NewNop()
	}
	in := &Inbox{root: root, log: log}
	for _, dir := range []string{in.OutboxDir(), in.InboxDir(), in.SignalsDir(), in.processedDir(), in.rejectedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return in, nil
}

// OutboxDir is where prompts are written.
func (in *Inbox) OutboxDir() string { return filepath.Join(in.root, "outbox") }

// InboxDir is where responses are expected.
func (in *Inbox) InboxDir() string { return filepath.Join(in.root, "inbox") }

// SignalsDir holds cancel requests.
func (in *Inbox) SignalsDir() string { return filepath.Join(in.root, "signals") }

func (in *Inbox) processedDir() string { return filepath.Join(in.InboxDir(), "processed") }
func (in *Inbox) rejectedDir() string  { return filepath.Join(in.InboxDir(), "rejected") }

// WritePrompt writes the prompt of one chunk (zero-based) and returns its path.
func (in *Inbox) WritePrompt(task string, chunk, total int, text string) (string, error) {
	name := fmt.Sprintf("%s-%dof%d.md", task, chunk+1, total)
	path := filepath.Join(in.OutboxDir(), name)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	return path, nil
}

// ResponsePath is the file name a human should save the response of a chunk under.
func (in *Inbox) ResponsePath(task string, chunk, total int) string {
	return filepath.Join(in.InboxDir(), fmt.Sprintf("%s-%dof%d.json", task, chunk+1, total))
}

// Pending lists response files for task that have not been picked up yet,
// oldest name first.
func (in *Inbox) Pending(task string) ([]string, error) {
	entries, err := os.ReadDir(in.InboxDir())
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(in.InboxDir(), e.Name())
		if matchesTask(task, path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Watch delivers every response file for task to fn until ctx is done or fn
// returns ErrStopWatching. Files already waiting are delivered first.
// Handled files move to inbox/processed, files fn rejects to inbox/rejected.
func (in *Inbox) Watch(ctx context.Context, task string, fn func(Delivery) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create inbox watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(in.InboxDir()); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}

	pending, err := in.Pending(task)
	if err != nil {
		return err
	}
	for _, path := range pending {
		if stop := in.deliver(path, fn); stop {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !matchesTask(task, event.Name) {
				continue
			}
			if stop := in.deliver(event.Name, fn); stop {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.log.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

func (in *Inbox) deliver(path string, fn func(Delivery) error) (stop bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Already moved by an earlier event for the same file.
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false
	}

	err = fn(Delivery{Path: path, Data: data})
	dest := in.processedDir()
	if err != nil && !errors.Is(err, ErrStopWatching) {
		dest = in.rejectedDir()
		in.log.Warn("inbox response rejected", zap.String("file", filepath.Base(path)), zap.Error(err))
	}
	stamped := fmt.Sprintf("%s.%s", filepath.Base(path), time.Now().UTC().Format("20060102T150405.000"))
	if mvErr := os.Rename(path, filepath.Join(dest, stamped)); mvErr != nil {
		in.log.Warn("move inbox response", zap.String("file", path), zap.Error(mvErr))
	}
	return errors.Is(err, ErrStopWatching)
}

func matchesTask(task, path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".json") && strings.HasPrefix(base, task)
}

const cancelAll = "cancel"

func (in *Inbox) signalPath(task string) string {
	if task == "" {
		return filepath.Join(in.SignalsDir(), cancelAll)
	}
	return filepath.Join(in.SignalsDir(), cancelAll+"-"+task)
}

// RequestCancel asks a running process to cancel task. An empty task
// cancels whatever is running.
func (in *Inbox) RequestCancel(task string) error {
	return os.WriteFile(in.signalPath(task), []byte(time.Now().UTC().Format(time.RFC3339)), 0644)
}

// CancelRequested reports whether a cancel request for task (or for
// everything) is waiting.
func (in *Inbox) CancelRequested(task string) bool {
	for _, p := range []string{in.signalPath(task), in.signalPath("")} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// ClearCancel removes the cancel requests for task and for everything.
func (in *Inbox) ClearCancel(task string) {
	_ = os.Remove(in.signalPath(task))
	_ = os.Remove(in.signalPath(""))
}

// WatchSignals calls fn with the task name (empty for "everything") each
// time a cancel request appears, until ctx is done.
func (in *Inbox) WatchSignals(ctx context.Context, fn func(task string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create signal watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(in.SignalsDir()); err != nil {
		return fmt.Errorf("watch signals: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			switch {
			case base == cancelAll:
				fn("")
			case strings.HasPrefix(base, cancelAll+"-"):
				fn(strings.TrimPrefix(base, cancelAll+"-"))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.log.Warn("signal watcher error", zap.Error(err))
		}
	}
}
