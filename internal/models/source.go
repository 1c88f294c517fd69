package models

import "time"

// SourceInfo describes a spreadsheet in the data directory
type SourceInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Format   string    `json:"format"` // xlsx, csv
	Active   bool      `json:"active"`
}
