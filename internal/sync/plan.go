package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/tasksync/internal/task"
)

// planActions builds the list of mutations needed to converge the two
// stores. Pairing runs in three steps: sync records first, then title
// bootstrap for unrecorded pairs, then creates for whatever is left.
func (e *Engine) planActions(
	ctx context.Context,
	hostTasks, deviceTasks []*task.Task,
	res *Result,
) ([]*SyncAction, error) {
	records, err := e.store.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: loading sync records: %w", err)
	}

	hostByID := make(map[string]*task.Task, len(hostTasks))
	for _, t := range hostTasks {
		hostByID[t.HostID] = t
	}

	deviceByID := make(map[string]*task.Task, len(deviceTasks))
	for _, t := range deviceTasks {
		deviceByID[t.DeviceID] = t
	}

	matched := make(map[*task.Task]bool)

	var actions []*SyncAction

	// Step 1: records pair tasks by their store-native IDs. A record whose
	// task vanished from one store schedules a delete on the other; a record
	// orphaned on both sides is purged.
	for _, record := range records {
		var hostTask, deviceTask *task.Task
		if record.HostID != "" {
			hostTask = hostByID[record.HostID]
		}
		if record.DeviceID != "" {
			deviceTask = deviceByID[record.DeviceID]
		}

		switch {
		case hostTask != nil && deviceTask != nil:
			matched[hostTask] = true
			matched[deviceTask] = true
			hostTask.SyncID = record.SyncID
			deviceTask.SyncID = record.SyncID

			if action := e.resolver.Resolve(hostTask, deviceTask, record); action != nil {
				actions = append(actions, action)
			} else {
				res.NoChange++
			}

		case hostTask != nil:
			matched[hostTask] = true
			hostTask.SyncID = record.SyncID

			actions = append(actions, &SyncAction{
				Kind:   ActionDelete,
				Target: TargetHost,
				Task:   hostTask,
				Reason: "Deleted from Device",
			})

		case deviceTask != nil:
			matched[deviceTask] = true
			deviceTask.SyncID = record.SyncID

			actions = append(actions, &SyncAction{
				Kind:   ActionDelete,
				Target: TargetDevice,
				Task:   deviceTask,
				Reason: "Deleted from Host",
			})

		default:
			// Both sides already gone. Nothing left to converge.
			if e.opts.DryRun {
				continue
			}

			e.logger.Info("purging orphaned sync record", "sync_id", record.SyncID)

			if err := e.store.DeleteRecord(ctx, record.SyncID); err != nil {
				return nil, fmt.Errorf("sync: purging record %s: %w", record.SyncID, err)
			}
		}
	}

	// Step 2: title bootstrap. Unrecorded tasks whose normalized title is
	// unique on both sides are the same task seen from two stores; link them
	// under a fresh sync ID.
	hostByTitle := groupUnmatched(hostTasks, matched)
	deviceByTitle := groupUnmatched(deviceTasks, matched)

	for key, hostGroup := range hostByTitle {
		deviceGroup := deviceByTitle[key]
		if len(hostGroup) != 1 || len(deviceGroup) != 1 {
			continue
		}

		hostTask, deviceTask := hostGroup[0], deviceGroup[0]
		matched[hostTask] = true
		matched[deviceTask] = true

		syncID := uuid.NewString()
		hostTask.SyncID = syncID
		deviceTask.SyncID = syncID

		e.logger.Info("linked tasks by title",
			"title", hostTask.Title, "sync_id", syncID)

		action := e.resolver.Resolve(hostTask, deviceTask, nil)
		if action != nil {
			actions = append(actions, action)
			continue
		}

		// Identical content on both sides: record the pairing now so the
		// next run matches by ID.
		res.NoChange++

		if e.opts.DryRun {
			continue
		}

		record := &SyncRecord{
			SyncID:         syncID,
			HostID:         hostTask.HostID,
			DeviceID:       deviceTask.DeviceID,
			LastSyncedHash: hostTask.ContentHash(),
			LastSyncTime:   NowUnix(),
			SourceSystem:   SourceBoth,
		}
		if err := e.store.UpsertRecord(ctx, record); err != nil {
			return nil, fmt.Errorf("sync: recording title match: %w", err)
		}

		details := fmt.Sprintf(`{"title":%q}`, hostTask.Title)
		if err := e.store.LogAction(ctx, "linked_by_title", syncID, details); err != nil {
			return nil, err
		}
	}

	// Step 3: whatever remains unpaired is new; create it on the other side.
	// The completed-age filter guards the Host side only, keeping years of
	// old reminders from flooding the Device; Device tasks always propagate.
	for _, t := range hostTasks {
		if matched[t] {
			continue
		}

		if e.skipOldCompleted(t) {
			res.SkippedOldCompleted++
			continue
		}

		t.SyncID = uuid.NewString()
		actions = append(actions, &SyncAction{
			Kind:   ActionCreate,
			Target: TargetDevice,
			Task:   t,
			Reason: "New from Host",
		})
	}

	for _, t := range deviceTasks {
		if matched[t] {
			continue
		}

		t.SyncID = uuid.NewString()
		actions = append(actions, &SyncAction{
			Kind:   ActionCreate,
			Target: TargetHost,
			Task:   t,
			Reason: "New from Device",
		})
	}

	return actions, nil
}

// groupUnmatched buckets not-yet-paired tasks by normalized title.
func groupUnmatched(tasks []*task.Task, matched map[*task.Task]bool) map[string][]*task.Task {
	byTitle := make(map[string][]*task.Task)
	for _, t := range tasks {
		if matched[t] {
			continue
		}

		key := normalizeTitle(t.Title)
		byTitle[key] = append(byTitle[key], t)
	}

	return byTitle
}

// skipOldCompleted reports whether an unpaired completed Host task is too
// old to be worth importing. The cutoff keys on the completion date alone; a
// completed task without one is kept.
func (e *Engine) skipOldCompleted(t *task.Task) bool {
	if !t.Completed || e.opts.CompletedMaxAge <= 0 {
		return false
	}
	if t.CompletionDate == nil {
		return false
	}

	return time.Since(*t.CompletionDate) > e.opts.CompletedMaxAge
}
