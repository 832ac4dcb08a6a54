package models

import "time"

// FileInfo represents metadata about an export file held in storage.
type FileInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	Rows      int       `json:"rows"`
}
