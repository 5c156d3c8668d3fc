package model

import "time"

type File struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index" json:"user_id"`

	// Original file name as the user sees it. The S3 object lives under
	// Path, which is disambiguated per owner so same-named files never
	// overwrite each other
	Name string   `json:"name"`
	Size ByteSize `json:"size"`
	Type string   `json:"type"`
	Path string   `gorm:"uniqueIndex" json:"path"`

	// Soft delete. Deleted files disappear from owner listings but stay
	// restorable until a hard delete removes the row and the object
	IsDeleted bool `gorm:"default:false;index" json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Owner, preloaded only on admin listings
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
