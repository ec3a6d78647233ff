package task

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
)

// DocumentLink is a structured pointer from a Device task to a specific page
// in a Device document. The Device stores it as base64-encoded canonical
// JSON; the Host has no native slot, so it is projected into the notes field
// as a readable suffix line.
type DocumentLink struct {
	AppName  string `json:"appName"`
	FileID   string `json:"fileId"`
	FilePath string `json:"filePath"`
	Page     int    `json:"page"`
	PageID   string `json:"pageId"`
}

// ToBase64 serializes the link to base64-encoded canonical JSON for storage
// in the Device links column.
func (d *DocumentLink) ToBase64() string {
	// A struct of strings and an int cannot fail to marshal.
	data, _ := json.Marshal(d)

	return base64.StdEncoding.EncodeToString(data)
}

// DocumentLinkFromBase64 decodes a Device links column value. Returns nil
// for an empty value; malformed payloads return nil as well because a
// corrupt link must never block syncing the rest of the task.
func DocumentLinkFromBase64(encoded string) *DocumentLink {
	if encoded == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}

	link := &DocumentLink{}
	if err := json.Unmarshal(data, link); err != nil {
		return nil
	}

	if link.FileID == "" && link.FilePath == "" {
		return nil
	}

	return link
}

// Readable renders the link as the human-readable suffix line appended to
// Host notes, e.g. "📎 meeting.note (page 3)".
func (d *DocumentLink) Readable() string {
	return fmt.Sprintf("📎 %s (page %d)", path.Base(d.FilePath), d.Page)
}
