package sync

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/tasksync/internal/task"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeTitle(t *testing.T) {
	t.Run("trims and lowercases", func(t *testing.T) {
		assert.Equal(t, "buy milk", normalizeTitle("  Buy Milk "))
	})

	t.Run("unicode forms group together", func(t *testing.T) {
		// "é" precomposed (U+00E9) vs decomposed (e + U+0301).
		assert.Equal(t, normalizeTitle("Café"), normalizeTitle("Café"))
	})
}

func TestDedupeHostTasks(t *testing.T) {
	day := 24 * time.Hour
	now := time.Now()

	mk := func(title string, completed bool, due *time.Time) *task.Task {
		return &task.Task{Title: title, Completed: completed, DueDate: due}
	}

	t.Run("incomplete beats completed", func(t *testing.T) {
		done := mk("Water plants", true, task.TimePtr(now))
		open := mk("Water plants", false, task.TimePtr(now.Add(-7*day)))

		deduped, removed := dedupeHostTasks([]*task.Task{done, open}, discardLogger())
		require.Len(t, deduped, 1)
		assert.Equal(t, 1, removed)
		assert.Same(t, open, deduped[0])
	})

	t.Run("latest due date wins within same status", func(t *testing.T) {
		old := mk("Take out trash", true, task.TimePtr(now.Add(-14*day)))
		recent := mk("Take out trash", true, task.TimePtr(now.Add(-1*day)))

		deduped, removed := dedupeHostTasks([]*task.Task{old, recent}, discardLogger())
		require.Len(t, deduped, 1)
		assert.Equal(t, 1, removed)
		assert.Same(t, recent, deduped[0])
	})

	t.Run("falls back to modification time", func(t *testing.T) {
		older := &task.Task{Title: "Standup", ModifiedAt: task.TimePtr(now.Add(-3 * day))}
		newer := &task.Task{Title: "Standup", ModifiedAt: task.TimePtr(now)}

		deduped, _ := dedupeHostTasks([]*task.Task{older, newer}, discardLogger())
		require.Len(t, deduped, 1)
		assert.Same(t, newer, deduped[0])
	})

	t.Run("no dates sorts last", func(t *testing.T) {
		dated := mk("Review", true, task.TimePtr(now))
		undated := mk("Review", true, nil)

		deduped, _ := dedupeHostTasks([]*task.Task{undated, dated}, discardLogger())
		require.Len(t, deduped, 1)
		assert.Same(t, dated, deduped[0])
	})

	t.Run("distinct titles untouched", func(t *testing.T) {
		a := mk("Alpha", false, nil)
		b := mk("Beta", false, nil)

		deduped, removed := dedupeHostTasks([]*task.Task{a, b}, discardLogger())
		assert.Len(t, deduped, 2)
		assert.Zero(t, removed)
	})

	t.Run("preserves first seen order", func(t *testing.T) {
		tasks := []*task.Task{
			mk("First", false, nil),
			mk("Second", false, nil),
			mk("First", true, nil),
			mk("Third", false, nil),
		}

		deduped, removed := dedupeHostTasks(tasks, discardLogger())
		require.Len(t, deduped, 3)
		assert.Equal(t, 1, removed)
		assert.Equal(t, "First", deduped[0].Title)
		assert.Equal(t, "Second", deduped[1].Title)
		assert.Equal(t, "Third", deduped[2].Title)
	})
}
