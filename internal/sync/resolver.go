package sync

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tonimelisma/tasksync/internal/task"
)

// ConflictStrategy selects how a both-sides-changed conflict is decided.
type ConflictStrategy string

// Supported conflict strategies. Any other value is rejected at startup.
const (
	PreferRecent ConflictStrategy = "prefer_recent"
	PreferHost   ConflictStrategy = "prefer_host"
	PreferDevice ConflictStrategy = "prefer_device"
)

// ValidStrategy reports whether s is a supported conflict strategy.
func ValidStrategy(s ConflictStrategy) bool {
	switch s {
	case PreferRecent, PreferHost, PreferDevice:
		return true
	default:
		return false
	}
}

// conflictReasonPrefix marks actions that resolved a genuine two-sided
// conflict; the executor counts these separately.
const conflictReasonPrefix = "Conflict:"

// resolver decides what to do when a task exists on both sides. It compares
// content hashes against the last-synced baseline from the sync record and
// falls back to the configured strategy when both sides changed.
type resolver struct {
	strategy ConflictStrategy
	window   time.Duration // modification-time window in which the Host wins
	logger   *slog.Logger
}

// Resolve returns the action needed to converge a paired task, or nil when
// the pair is already in sync. record may be nil for a fresh title-matched
// pairing, in which case the baseline hash is empty.
func (r *resolver) Resolve(hostTask, deviceTask *task.Task, record *SyncRecord) *SyncAction {
	hostHash := hostTask.ContentHash()
	deviceHash := deviceTask.ContentHash()

	lastHash := ""
	if record != nil {
		lastHash = record.LastSyncedHash
	}

	// Both sides agree: nothing to do.
	if hostHash == deviceHash {
		return nil
	}

	// Neither side moved from the baseline: nothing to do.
	if hostHash == lastHash && deviceHash == lastHash {
		return nil
	}

	hostChanged := hostHash != lastHash
	deviceChanged := deviceHash != lastHash

	switch {
	case hostChanged && !deviceChanged:
		return r.hostWins(hostTask, deviceTask, "Changed on Host")
	case deviceChanged && !hostChanged:
		return r.deviceWins(hostTask, deviceTask, "Changed on Device")
	default:
		return r.resolveBothChanged(hostTask, deviceTask)
	}
}

// resolveBothChanged applies the configured strategy when both sides were
// edited since the last sync.
func (r *resolver) resolveBothChanged(hostTask, deviceTask *task.Task) *SyncAction {
	winner := r.pickWinner(hostTask, deviceTask)

	r.logger.Info("conflict resolved",
		"title", hostTask.Title,
		"winner", winner,
		"strategy", string(r.strategy),
	)

	if winner == TargetHost {
		reason := fmt.Sprintf("%s Host wins (%s)", conflictReasonPrefix, r.strategy)
		return r.hostWins(hostTask, deviceTask, reason)
	}

	reason := fmt.Sprintf("%s Device wins (%s)", conflictReasonPrefix, r.strategy)

	return r.deviceWins(hostTask, deviceTask, reason)
}

// pickWinner returns which side's content should prevail in a two-sided
// conflict.
func (r *resolver) pickWinner(hostTask, deviceTask *task.Task) Target {
	switch r.strategy {
	case PreferHost:
		return TargetHost
	case PreferDevice:
		return TargetDevice
	default:
		// prefer_recent: compare modification timestamps as instants.
		// Within the window the Host wins — its timestamps are more
		// trustworthy (the Device bumps last_modified on background jobs).
		hostMod := modTime(hostTask)
		deviceMod := modTime(deviceTask)

		diff := hostMod.Sub(deviceMod)
		if diff < 0 {
			diff = -diff
		}

		if diff < r.window || !hostMod.Before(deviceMod) {
			return TargetHost
		}

		return TargetDevice
	}
}

// hostWins copies the Host content onto the Device task and schedules a
// Device update. The Device task keeps its native ID (so the update targets
// the right row) and its document link, which the Host never carries.
func (r *resolver) hostWins(hostTask, deviceTask *task.Task, reason string) *SyncAction {
	deviceTask.CopyContentFrom(hostTask)
	deviceTask.HostID = hostTask.HostID

	return &SyncAction{
		Kind:   ActionUpdate,
		Target: TargetDevice,
		Task:   deviceTask,
		Reason: reason,
	}
}

// deviceWins copies the Device content onto the Host task and schedules a
// Host update, carrying the Device document link along.
func (r *resolver) deviceWins(hostTask, deviceTask *task.Task, reason string) *SyncAction {
	hostTask.CopyContentFrom(deviceTask)
	hostTask.DeviceID = deviceTask.DeviceID
	hostTask.DocumentLink = deviceTask.DocumentLink

	return &SyncAction{
		Kind:   ActionUpdate,
		Target: TargetHost,
		Task:   hostTask,
		Reason: reason,
	}
}

// modTime returns the task's modification time normalized to UTC, or the
// zero time when absent so a side without a timestamp always loses a
// recency comparison.
func modTime(t *task.Task) time.Time {
	if t.ModifiedAt == nil {
		return time.Time{}
	}

	return t.ModifiedAt.UTC()
}

// isConflictAction reports whether an action's reason marks it as a
// resolved two-sided conflict.
func isConflictAction(action *SyncAction) bool {
	return strings.HasPrefix(action.Reason, conflictReasonPrefix)
}
