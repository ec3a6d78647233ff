// Package host implements the adapter for the OS reminders service. All
// access goes through a native helper binary that speaks JSON on stdout;
// reminders are addressed by list name plus external ID, the way the
// helper's own CLI works.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tonimelisma/tasksync/internal/sync"
	"github.com/tonimelisma/tasksync/internal/task"
)

// reminderURIScheme prefixes external IDs in some helper outputs. IDs are
// normalized to the bare UUID everywhere.
const reminderURIScheme = "x-apple-reminder://"

// defaultList receives reminders whose task has no category.
const defaultList = "Inbox"

// Adapter shells out to the helper binary for every operation. It holds no
// state beyond its configuration and is safe to reuse across calls.
type Adapter struct {
	helperPath string
	timeout    time.Duration
	logger     *slog.Logger
}

var _ sync.HostAdapter = (*Adapter)(nil)

// New builds an Adapter and verifies the helper binary exists.
func New(helperPath string, timeout time.Duration, logger *slog.Logger) (*Adapter, error) {
	if _, err := os.Stat(helperPath); err != nil {
		return nil, fmt.Errorf("host: helper binary not found at %s: %w", helperPath, err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Adapter{helperPath: helperPath, timeout: timeout, logger: logger}, nil
}

// NormalizeID strips the reminder URI scheme, standardizing on the bare ID.
func NormalizeID(id string) string {
	return strings.TrimPrefix(id, reminderURIScheme)
}

// run executes one helper invocation under the per-call timeout and returns
// its stdout.
func (a *Adapter) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.helperPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	a.logger.Debug("running host helper", "args", args)

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return nil, fmt.Errorf("host: helper %s: %s", args[0], msg)
	}

	return stdout.Bytes(), nil
}

// listJSON is one list entry in the helper's show-lists output.
type listJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// reminderJSON is one reminder in the helper's JSON output. Dates are
// RFC 3339.
type reminderJSON struct {
	ExternalID     string `json:"externalId"`
	Title          string `json:"title"`
	Notes          string `json:"notes"`
	List           string `json:"list"`
	IsCompleted    bool   `json:"isCompleted"`
	Priority       int    `json:"priority"`
	DueDate        string `json:"dueDate"`
	CreationDate   string `json:"creationDate"`
	LastModified   string `json:"lastModified"`
	CompletionDate string `json:"completionDate"`
}

// ListLists returns all reminder lists.
func (a *Adapter) ListLists(ctx context.Context) ([]sync.Category, error) {
	out, err := a.run(ctx, "show-lists", "--format", "json")
	if err != nil {
		return nil, err
	}

	var lists []listJSON
	if err := json.Unmarshal(out, &lists); err != nil {
		return nil, fmt.Errorf("host: parsing list output: %w", err)
	}

	cats := make([]sync.Category, 0, len(lists))
	for _, l := range lists {
		cats = append(cats, sync.Category{ID: l.ID, Name: l.Name})
	}

	return cats, nil
}

// CreateList creates a new reminder list and returns its ID.
func (a *Adapter) CreateList(ctx context.Context, name string) (string, error) {
	out, err := a.run(ctx, "new-list", name, "--format", "json")
	if err != nil {
		return "", err
	}

	var l listJSON
	if err := json.Unmarshal(out, &l); err != nil {
		return "", fmt.Errorf("host: parsing new-list output: %w", err)
	}

	return l.ID, nil
}

// RenameList renames a reminder list in place.
func (a *Adapter) RenameList(ctx context.Context, oldName, newName string) error {
	_, err := a.run(ctx, "rename-list", oldName, newName)
	return err
}

// ListReminders returns reminders from every list.
func (a *Adapter) ListReminders(ctx context.Context, includeCompleted bool) ([]*task.Task, error) {
	args := []string{"show-all", "--format", "json"}
	if includeCompleted {
		args = append(args, "--include-completed")
	}

	out, err := a.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var reminders []reminderJSON
	if err := json.Unmarshal(out, &reminders); err != nil {
		return nil, fmt.Errorf("host: parsing reminder output: %w", err)
	}

	tasks := make([]*task.Task, 0, len(reminders))
	for _, r := range reminders {
		tasks = append(tasks, reminderToTask(r))
	}

	return tasks, nil
}

// GetReminderByID returns one reminder, or (nil, nil) when it does not
// exist. The helper has no point lookup, so this scans the full set.
func (a *Adapter) GetReminderByID(ctx context.Context, id string) (*task.Task, error) {
	id = NormalizeID(id)

	tasks, err := a.ListReminders(ctx, true)
	if err != nil {
		return nil, err
	}

	for _, t := range tasks {
		if t.HostID == id {
			return t, nil
		}
	}

	return nil, nil
}

// reminderToTask converts helper JSON to a Task, stripping sync metadata
// and the document-link suffix from the notes.
func reminderToTask(r reminderJSON) *task.Task {
	t := &task.Task{
		HostID:    NormalizeID(r.ExternalID),
		Title:     r.Title,
		Notes:     stripNotesMetadata(r.Notes),
		Category:  r.List,
		Completed: r.IsCompleted,
		Priority:  priorityFromHost(r.Priority),
	}

	if t.Category == "" {
		t.Category = defaultList
	}

	t.DueDate = parseTime(r.DueDate)
	t.CreatedAt = parseTime(r.CreationDate)
	t.ModifiedAt = parseTime(r.LastModified)
	t.CompletionDate = parseTime(r.CompletionDate)

	return t
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}

	return &t
}

// CreateReminder creates a reminder, creating its list first when missing,
// and returns the new external ID. Completed tasks are created and then
// marked complete; the helper's add verb has no completed flag.
func (a *Adapter) CreateReminder(ctx context.Context, t *task.Task) (string, error) {
	listName := t.Category
	if listName == "" {
		listName = defaultList
	}

	if err := a.ensureList(ctx, listName); err != nil {
		return "", err
	}

	args := []string{"add", listName, t.Title, "--format", "json"}

	if notes := notesForHost(t); notes != "" {
		args = append(args, "--notes", notes)
	}

	if t.DueDate != nil {
		args = append(args, "--due-date", t.DueDate.Format("2006-01-02 15:04"))
	}

	if label := priorityLabel(priorityToHost(t.Priority)); label != "" {
		args = append(args, "--priority", label)
	}

	out, err := a.run(ctx, args...)
	if err != nil {
		return "", err
	}

	var created reminderJSON
	if err := json.Unmarshal(out, &created); err != nil {
		return "", fmt.Errorf("host: parsing add output: %w", err)
	}

	id := NormalizeID(created.ExternalID)

	if t.Completed && id != "" {
		if _, err := a.run(ctx, "complete", listName, id); err != nil {
			return "", err
		}
	}

	return id, nil
}

// UpdateReminder applies only the subfields that differ from the current
// state, each through its own helper verb. A list change moves the reminder
// in place, preserving its external ID.
func (a *Adapter) UpdateReminder(ctx context.Context, t *task.Task) error {
	if t.HostID == "" {
		return fmt.Errorf("host: cannot update reminder without ID")
	}

	current, err := a.GetReminderByID(ctx, t.HostID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("host: reminder %s not found", t.HostID)
	}

	currentList := current.Category

	if t.Completed != current.Completed {
		verb := "complete"
		if !t.Completed {
			verb = "uncomplete"
		}

		if _, err := a.run(ctx, verb, currentList, t.HostID); err != nil {
			return err
		}
	}

	titleChanged := t.Title != current.Title
	// current.Notes had its metadata suffix stripped on ingress, so compare
	// user content against user content; the suffix is re-applied on write.
	notesChanged := t.Notes != current.Notes

	if titleChanged || notesChanged {
		args := []string{"edit", currentList, t.HostID}
		if titleChanged {
			args = append(args, t.Title)
		}
		if notesChanged {
			args = append(args, "--notes", notesForHost(t))
		}

		if _, err := a.run(ctx, args...); err != nil {
			return err
		}
	}

	if !equalTime(t.DueDate, current.DueDate) {
		due := "null"
		if t.DueDate != nil {
			due = t.DueDate.Format(time.RFC3339)
		}

		if _, err := a.run(ctx, "set-due-date", currentList, t.HostID, due); err != nil {
			return err
		}
	}

	if t.Priority != current.Priority {
		p := strconv.Itoa(priorityToHost(t.Priority))
		if _, err := a.run(ctx, "set-priority", currentList, t.HostID, p); err != nil {
			return err
		}
	}

	if t.Category != "" && t.Category != currentList {
		if err := a.ensureList(ctx, t.Category); err != nil {
			return err
		}

		if _, err := a.run(ctx, "move", currentList, t.HostID, t.Category); err != nil {
			return err
		}
	}

	return nil
}

// DeleteReminder removes a reminder. The helper addresses reminders by
// list, so the current list is looked up first.
func (a *Adapter) DeleteReminder(ctx context.Context, id string) error {
	current, err := a.GetReminderByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("host: reminder %s not found", id)
	}

	_, err = a.run(ctx, "delete", current.Category, NormalizeID(id))

	return err
}

// TestConnection reports whether the helper can reach the reminders service.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if _, err := a.ListLists(ctx); err != nil {
		a.logger.Debug("host connection test failed", "error", err)
		return false
	}

	return true
}

// ensureList creates the named list when it does not exist yet.
func (a *Adapter) ensureList(ctx context.Context, name string) error {
	lists, err := a.ListLists(ctx)
	if err != nil {
		return err
	}

	for _, l := range lists {
		if l.Name == name {
			return nil
		}
	}

	_, err = a.CreateList(ctx, name)

	return err
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Equal(*b)
}
