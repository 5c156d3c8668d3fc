package model

import "time"

const (
	UploadStatusSuccess = "SUCCESS"
	UploadStatusError   = "ERROR"
)

// UploadHistory rows are written once per finished upload attempt and never
// updated. FileID is nil when the attempt failed before a file record existed.
type UploadHistory struct {
	ID     uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID *string `gorm:"index" json:"file_id"`
	UserID string  `gorm:"index" json:"user_id"`

	Size   ByteSize `json:"size"`
	Status string   `gorm:"index" json:"status"`

	CreatedAt time.Time `json:"created_at"`

	File *File `gorm:"foreignKey:FileID" json:"file,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
