// Package task defines the normalized task model shared by the Device and
// Host adapters and the sync engine. A Task is ephemeral: adapters construct
// one per row/reminder each run, the engine's resolver mutates it, and it is
// never persisted in this form.
package task

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Normalized priority scale. Host and Device native scales are mapped onto
// this by their adapters.
const (
	PriorityNone   = 0
	PriorityLow    = 1
	PriorityMedium = 5
	PriorityHigh   = 9
)

// Task status values as used by the Device store.
const (
	StatusNeedsAction = "needsAction"
	StatusCompleted   = "completed"
)

// hashHexLength is the truncated length of the content hash in hex characters.
const hashHexLength = 16

// Task is the unified representation of a to-do item across both stores.
type Task struct {
	// SyncID is the stable opaque identifier assigned by the engine when a
	// pairing is first established. Empty until paired.
	SyncID string

	Title     string
	Notes     string
	Category  string
	Completed bool
	Priority  int // normalized scale: 0/1/5/9

	CompletionDate *time.Time
	DueDate        *time.Time
	CreatedAt      *time.Time
	ModifiedAt     *time.Time

	// Store-native identifiers. Either or both may be empty.
	DeviceID string
	HostID   string

	// DocumentLink points into a Device document. Only the Device originates
	// one; the Host projection lives in the notes suffix.
	DocumentLink *DocumentLink
}

// Status derives the Device-style status string from the completed flag.
func (t *Task) Status() string {
	if t.Completed {
		return StatusCompleted
	}

	return StatusNeedsAction
}

// hashContent is the canonical tuple covered by the content hash. Field
// order is alphabetical to keep the serialization stable.
type hashContent struct {
	Category  string `json:"category"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes"`
	Priority  int    `json:"priority"`
	Title     string `json:"title"`
}

// ContentHash returns a stable 16-hex-character digest over the sync-relevant
// fields: title, notes, category, completed, priority. Timestamps, IDs, and
// the due date are deliberately excluded — the hash must be invariant under
// timezone shifts and reserialization. A change to the due date alone is
// therefore not detected by hash comparison; it only propagates when another
// field changes as well.
func (t *Task) ContentHash() string {
	content := hashContent{
		Category:  t.Category,
		Completed: t.Completed,
		Notes:     t.Notes,
		Priority:  t.Priority,
		Title:     t.Title,
	}

	// Marshaling a flat struct of primitives cannot fail.
	data, _ := json.Marshal(content)
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])[:hashHexLength]
}

// CopyContentFrom copies the sync-relevant fields (plus due date) from src
// onto t, preserving t's store-native IDs so an update targets the correct
// row. Used by the conflict resolver when applying a winner onto the loser.
func (t *Task) CopyContentFrom(src *Task) {
	t.SyncID = src.SyncID
	t.Title = src.Title
	t.Notes = src.Notes
	t.Completed = src.Completed
	t.DueDate = src.DueDate
	t.Priority = src.Priority
	t.Category = src.Category
}

// TimePtr returns a pointer to the given time. Helper for optional
// timestamp fields.
func TimePtr(t time.Time) *time.Time {
	return &t
}
