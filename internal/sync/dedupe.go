package sync

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/tasksync/internal/task"
)

// normalizeTitle produces the canonical form used for title grouping and
// bootstrap matching: NFC-normalized, trimmed, lowercased. NFC matters
// because the Host service stores decomposed Unicode for some inputs while
// the Device stores precomposed — the same visible title must group together.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(title)))
}

// dedupeHostTasks collapses Host-side repeating-reminder instances: groups
// tasks by trimmed title and keeps exactly one member per group, preferring
// incomplete over completed and, within the same status, the latest date
// (due date, falling back to modification time; no-date instances last).
// Returns the surviving tasks and the number of duplicates removed.
func dedupeHostTasks(tasks []*task.Task, logger *slog.Logger) ([]*task.Task, int) {
	byTitle := make(map[string][]*task.Task)
	order := make([]string, 0, len(tasks))

	for _, t := range tasks {
		key := normalizeTitle(t.Title)
		if _, seen := byTitle[key]; !seen {
			order = append(order, key)
		}

		byTitle[key] = append(byTitle[key], t)
	}

	deduped := make([]*task.Task, 0, len(byTitle))
	removed := 0

	for _, key := range order {
		group := byTitle[key]
		if len(group) == 1 {
			deduped = append(deduped, group[0])
			continue
		}

		best := group[0]
		for _, candidate := range group[1:] {
			if dedupeLess(candidate, best) {
				best = candidate
			}
		}

		deduped = append(deduped, best)
		removed += len(group) - 1

		logger.Debug("collapsed repeating task group",
			"title", best.Title,
			"instances", len(group),
		)
	}

	if removed > 0 {
		logger.Info("deduplicated repeating tasks", "removed", removed)
	}

	return deduped, removed
}

// dedupeLess reports whether a should be retained over b:
// incomplete beats completed; within the same status, the later date wins.
func dedupeLess(a, b *task.Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}

	return dedupeDate(a).After(dedupeDate(b))
}

// dedupeDate returns the comparison date for dedup ordering: due date,
// falling back to modification time. The zero time sorts last.
func dedupeDate(t *task.Task) time.Time {
	if t.DueDate != nil {
		return *t.DueDate
	}

	if t.ModifiedAt != nil {
		return *t.ModifiedAt
	}

	return time.Time{}
}
