package host

import (
	"regexp"
	"strings"

	"github.com/tonimelisma/tasksync/internal/task"
)

// The Host notes field carries the task's notes plus a readable
// document-link suffix. Older versions also embedded a [sync:uuid] marker;
// pairing now lives in the state database, but the marker is still stripped
// so leftovers never enter the content hash.

var (
	syncMarkerPattern = regexp.MustCompile(`\n*\[sync:[a-f0-9-]+\]`)
	docLinkPattern    = regexp.MustCompile(`\n*📎 [^\n]+`)
)

// notesForHost builds the notes field written to the Host: the task's own
// notes followed by the document-link suffix when the task carries one.
func notesForHost(t *task.Task) string {
	var parts []string

	if t.Notes != "" {
		parts = append(parts, t.Notes)
	}

	if t.DocumentLink != nil {
		parts = append(parts, "\n"+t.DocumentLink.Readable())
	}

	return strings.TrimSpace(strings.Join(parts, ""))
}

// stripNotesMetadata removes the sync marker and document-link suffix,
// leaving only user content.
func stripNotesMetadata(notes string) string {
	if notes == "" {
		return ""
	}

	cleaned := syncMarkerPattern.ReplaceAllString(notes, "")
	cleaned = docLinkPattern.ReplaceAllString(cleaned, "")

	return strings.TrimSpace(cleaned)
}
