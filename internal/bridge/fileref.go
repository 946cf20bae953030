package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// FileRef — переносимая ссылка на вложение. Её можно сохранить строкой и
// позже передать в DownloadMedia того же бэкенда.
type FileRef struct {
	Backend       Backend   `json:"b"`
	Type          MediaType `json:"t"`
	ID            int64     `json:"id"`
	AccessHash    int64     `json:"ah,omitempty"`
	FileReference []byte    `json:"fr,omitempty"`
	ThumbSize     string    `json:"ts,omitempty"`
	DCID          int       `json:"dc,omitempty"`
	Size          int64     `json:"sz,omitempty"`
	ChatID        int64     `json:"c,omitempty"`
	MessageID     int       `json:"m,omitempty"`
}

// String кодирует ссылку в urlsafe base64 без паддинга.
func (r FileRef) String() string {
	raw, _ := json.Marshal(r)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseFileRef разбирает строку, полученную из FileRef.String.
func ParseFileRef(s string) (FileRef, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return FileRef{}, fmt.Errorf("file ref: %w", err)
	}
	var r FileRef
	if err := json.Unmarshal(raw, &r); err != nil {
		return FileRef{}, fmt.Errorf("file ref: %w", err)
	}
	return r, nil
}
