// Package sync implements the bidirectional sync engine for tasksync.
// It provides the persistent sync-state store, category reconciliation,
// repeating-task deduplication, pairing, conflict resolution, and action
// execution — the full pipeline between the Device and Host adapters.
package sync

import (
	"context"
	"time"

	"github.com/tonimelisma/tasksync/internal/task"
)

// SourceSystem identifies which store a record or change originated from.
type SourceSystem string

// Values for the source_system column.
const (
	SourceHost   SourceSystem = "host"
	SourceDevice SourceSystem = "device"
	SourceBoth   SourceSystem = "both"
)

// SyncRecord pairs a Host task and a Device task under a stable sync_id and
// remembers the content hash both sides last agreed on. It is the
// change-detection baseline: a side whose current hash differs from
// LastSyncedHash has been edited since the last run.
type SyncRecord struct {
	SyncID         string
	HostID         string // empty when the Host side is gone or never existed
	DeviceID       string // empty when the Device side is gone or never existed
	LastSyncedHash string
	LastSyncTime   int64 // Unix seconds
	SourceSystem   SourceSystem
}

// CategoryMapping binds a Device category to a Host list. Name is the
// last-known shared name, used to detect which side renamed.
type CategoryMapping struct {
	DeviceID string
	HostID   string
	Name     string
}

// LogEntry is one row of the append-only audit log.
type LogEntry struct {
	ID        int64
	Timestamp int64 // Unix seconds
	Action    string
	SyncID    string
	Details   string // JSON, may be empty
}

// Stats partitions sync records by which sides they reference.
type Stats struct {
	Total      int
	HostOnly   int
	DeviceOnly int
	Both       int
}

// ActionKind is the kind of mutation a SyncAction performs.
type ActionKind string

// Action kinds.
const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
)

// Target selects which store an action is dispatched to.
type Target string

// Action targets.
const (
	TargetDevice Target = "device"
	TargetHost   Target = "host"
)

// SyncAction is a single planned mutation produced by the pairing and
// conflict-resolution phases. Pure value: executing it is the executor's job.
type SyncAction struct {
	Kind   ActionKind
	Target Target
	Task   *task.Task
	Reason string
}

// Result summarizes one sync run.
type Result struct {
	StartedAt   time.Time
	CompletedAt time.Time
	DryRun      bool

	// Per-direction counts. "HostToDevice" means the Device store was mutated.
	HostToDeviceCreated int
	HostToDeviceUpdated int
	HostToDeviceDeleted int
	DeviceToHostCreated int
	DeviceToHostUpdated int
	DeviceToHostDeleted int

	ConflictsResolved   int
	NoChange            int
	Deduped             int
	SkippedOldCompleted int

	Errors []string
}

// TotalActions returns the number of mutations actually performed.
func (r *Result) TotalActions() int {
	return r.HostToDeviceCreated + r.HostToDeviceUpdated + r.HostToDeviceDeleted +
		r.DeviceToHostCreated + r.DeviceToHostUpdated + r.DeviceToHostDeleted
}

// Category is a named category (Device) or list (Host) with its store-native ID.
type Category struct {
	ID   string
	Name string
}

// --- Consumer-defined adapter interfaces ---
// The engine depends on these rather than on the concrete device/host
// packages, following the "accept interfaces, return structs" convention.
// Both are synchronous; "not found" is reported as a nil task, not an error.

// DeviceAdapter is the interface to the tablet's task database.
type DeviceAdapter interface {
	ListTasks(ctx context.Context, category string, includeCompleted bool) ([]*task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	CreateTask(ctx context.Context, t *task.Task) (string, error)
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id string, soft bool) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (string, error)
	RenameCategory(ctx context.Context, id, newName string) error
	TestConnection(ctx context.Context) bool
}

// HostAdapter is the interface to the OS reminders service.
type HostAdapter interface {
	ListLists(ctx context.Context) ([]Category, error)
	CreateList(ctx context.Context, name string) (string, error)
	ListReminders(ctx context.Context, includeCompleted bool) ([]*task.Task, error)
	GetReminderByID(ctx context.Context, id string) (*task.Task, error)
	CreateReminder(ctx context.Context, t *task.Task) (string, error)
	UpdateReminder(ctx context.Context, t *task.Task) error
	DeleteReminder(ctx context.Context, id string) error
	RenameList(ctx context.Context, oldName, newName string) error
	TestConnection(ctx context.Context) bool
}

// Store is the interface for the sync-state database. The engine operates
// against this interface rather than the concrete SQLite implementation.
type Store interface {
	// Sync records
	GetRecord(ctx context.Context, syncID string) (*SyncRecord, error)
	GetByHostID(ctx context.Context, hostID string) (*SyncRecord, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*SyncRecord, error)
	UpsertRecord(ctx context.Context, record *SyncRecord) error
	DeleteRecord(ctx context.Context, syncID string) error
	AllRecords(ctx context.Context) ([]*SyncRecord, error)
	Stats(ctx context.Context) (*Stats, error)

	// Category mappings
	GetMappingByDeviceID(ctx context.Context, deviceID string) (*CategoryMapping, error)
	GetMappingByHostID(ctx context.Context, hostID string) (*CategoryMapping, error)
	UpsertMapping(ctx context.Context, mapping *CategoryMapping) error
	DeleteMapping(ctx context.Context, deviceID string) error
	AllMappings(ctx context.Context) ([]*CategoryMapping, error)

	// Audit log
	LogAction(ctx context.Context, action, syncID, details string) error
	RecentLogs(ctx context.Context, limit int) ([]*LogEntry, error)

	// Maintenance
	ClearAll(ctx context.Context) error
	Close() error
}

// NowUnix returns the current time as Unix seconds. Sync-record and audit
// timestamps use second precision throughout.
func NowUnix() int64 {
	return time.Now().Unix()
}
