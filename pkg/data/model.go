package data

import "time"

// Book is a completed download recorded in the local library.
type Book struct {
	ID           string
	Title        string
	ISBN         string
	EpubPath     string
	Chapters     int
	DownloadedAt time.Time
}
