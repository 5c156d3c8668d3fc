package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Upload session states. Transitions only ever move forward:
// INIT -> UPLOADING -> COMPLETING -> COMPLETED
//                   -> ABORTING   -> ABORTED
// COMPLETING and ABORTING exist so a duplicate complete/abort arriving while
// the store call is in flight gets rejected instead of re-executed.
const (
	SessionInit       = "INIT"
	SessionUploading  = "UPLOADING"
	SessionCompleting = "COMPLETING"
	SessionCompleted  = "COMPLETED"
	SessionAborting   = "ABORTING"
	SessionAborted    = "ABORTED"
)

type Part struct {
	PartNumber int32  `json:"part_number"`
	Size       int64  `json:"size"`
	ETag       string `json:"etag,omitempty"`
	Uploaded   bool   `json:"uploaded"`
}

// UploadSession tracks one in-flight multipart upload. The primary key is the
// upload ID issued by the object store, so every part/complete/abort call can
// be authorized against the owner that initiated it.
type UploadSession struct {
	UploadID string `gorm:"primaryKey" json:"upload_id"`
	UserID   string `gorm:"index;not null" json:"user_id"`

	Key          string    `gorm:"not null" json:"key"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	TotalSize    ByteSize  `json:"total_size"`
	Parts        PartSlice `json:"parts"`
	Status       string    `gorm:"index;default:INIT" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the session can't accept further lifecycle calls.
func (s *UploadSession) Terminal() bool {
	switch s.Status {
	case SessionCompleting, SessionCompleted, SessionAborting, SessionAborted:
		return true
	}
	return false
}

// Custom serializer for the part inventory. Parts carry ETags which can
// contain about anything, so this stores JSON rather than a joined string.

type PartSlice []Part

// Value implements the driver.Valuer interface.
func (p PartSlice) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}

	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize parts, %w", err)
	}

	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (p *PartSlice) Scan(value interface{}) error {
	if value == nil {
		*p = PartSlice{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("failed to scan PartSlice, %v", value)
	}

	if len(b) == 0 {
		*p = PartSlice{}
		return nil
	}

	return json.Unmarshal(b, p)
}
