package sync

import (
	"context"
	"fmt"
)

// execute performs one planned action against its target store and persists
// the resulting sync record. Failures are appended to res.Errors; the run
// continues with the next action.
func (e *Engine) execute(ctx context.Context, action *SyncAction, translator *categoryTranslator, res *Result) {
	t := action.Task

	if e.opts.DryRun {
		e.logger.Info("dry run",
			"action", string(action.Kind),
			"target", string(action.Target),
			"title", t.Title,
			"reason", action.Reason,
		)
		e.count(action, res)

		return
	}

	e.logger.Info("applying action",
		"action", string(action.Kind),
		"target", string(action.Target),
		"title", t.Title,
		"reason", action.Reason,
	)

	var err error
	switch action.Target {
	case TargetDevice:
		err = e.applyDevice(ctx, action, translator)
	case TargetHost:
		err = e.applyHost(ctx, action, translator)
	default:
		err = fmt.Errorf("sync: unknown action target %q", action.Target)
	}

	if err != nil {
		msg := fmt.Sprintf("%s %s %q: %v", action.Kind, action.Target, t.Title, err)
		res.Errors = append(res.Errors, msg)
		e.logger.Error("action failed",
			"action", string(action.Kind),
			"target", string(action.Target),
			"title", t.Title,
			"error", err,
		)

		if logErr := e.store.LogAction(ctx, "error", t.SyncID, fmt.Sprintf(`{"message":%q}`, msg)); logErr != nil {
			e.logger.Warn("recording action error failed", "error", logErr)
		}

		return
	}

	e.count(action, res)

	details := fmt.Sprintf(`{"title":%q,"reason":%q}`, t.Title, action.Reason)
	auditAction := fmt.Sprintf("%s_%s", action.Kind, action.Target)
	if logErr := e.store.LogAction(ctx, auditAction, t.SyncID, details); logErr != nil {
		e.logger.Warn("recording action failed", "error", logErr)
	}
}

// applyDevice dispatches an action to the Device adapter and updates the
// sync record immediately after the mutation succeeds. The adapter receives
// a copy with the Device-side category spelling; action.Task keeps the
// canonical name so the recorded hash matches the next run's view.
func (e *Engine) applyDevice(ctx context.Context, action *SyncAction, translator *categoryTranslator) error {
	t := action.Task
	send := *t
	send.Category = translator.DeviceName(t.Category)

	switch action.Kind {
	case ActionCreate:
		id, err := e.device.CreateTask(ctx, &send)
		if err != nil {
			return err
		}

		t.DeviceID = id

		return e.upsertRecord(ctx, action, SourceHost)

	case ActionUpdate:
		if err := e.device.UpdateTask(ctx, &send); err != nil {
			return err
		}

		return e.upsertRecord(ctx, action, SourceHost)

	case ActionDelete:
		if err := e.device.DeleteTask(ctx, t.DeviceID, true); err != nil {
			return err
		}

		return e.store.DeleteRecord(ctx, t.SyncID)

	default:
		return fmt.Errorf("sync: unknown action kind %q", action.Kind)
	}
}

// applyHost mirrors applyDevice for the Host adapter.
func (e *Engine) applyHost(ctx context.Context, action *SyncAction, translator *categoryTranslator) error {
	t := action.Task
	send := *t
	send.Category = translator.HostName(t.Category)

	switch action.Kind {
	case ActionCreate:
		id, err := e.host.CreateReminder(ctx, &send)
		if err != nil {
			return err
		}

		t.HostID = id

		return e.upsertRecord(ctx, action, SourceDevice)

	case ActionUpdate:
		if err := e.host.UpdateReminder(ctx, &send); err != nil {
			return err
		}

		return e.upsertRecord(ctx, action, SourceDevice)

	case ActionDelete:
		if err := e.host.DeleteReminder(ctx, t.HostID); err != nil {
			return err
		}

		return e.store.DeleteRecord(ctx, t.SyncID)

	default:
		return fmt.Errorf("sync: unknown action kind %q", action.Kind)
	}
}

// upsertRecord persists the post-action pairing state. The stored hash is
// the content both sides now agree on, so the next run sees this pair as
// unchanged until a real edit happens.
func (e *Engine) upsertRecord(ctx context.Context, action *SyncAction, source SourceSystem) error {
	t := action.Task

	record := &SyncRecord{
		SyncID:         t.SyncID,
		HostID:         t.HostID,
		DeviceID:       t.DeviceID,
		LastSyncedHash: t.ContentHash(),
		LastSyncTime:   NowUnix(),
		SourceSystem:   source,
	}

	if err := e.store.UpsertRecord(ctx, record); err != nil {
		return fmt.Errorf("sync: updating record %s: %w", t.SyncID, err)
	}

	return nil
}

// count increments the Result bucket matching the action.
func (e *Engine) count(action *SyncAction, res *Result) {
	if action.Kind == ActionUpdate && isConflictAction(action) {
		res.ConflictsResolved++
	}

	switch action.Target {
	case TargetDevice:
		switch action.Kind {
		case ActionCreate:
			res.HostToDeviceCreated++
		case ActionUpdate:
			res.HostToDeviceUpdated++
		case ActionDelete:
			res.HostToDeviceDeleted++
		}
	case TargetHost:
		switch action.Kind {
		case ActionCreate:
			res.DeviceToHostCreated++
		case ActionUpdate:
			res.DeviceToHostUpdated++
		case ActionDelete:
			res.DeviceToHostDeleted++
		}
	}
}
