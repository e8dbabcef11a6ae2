package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Letter struct {
	ID              string
	SenderName      string
	RecipientName   string
	Salutation      string
	Title           string
	Content         string
	SpecificRequest string
	Closing         string
	DocType         string
	CreatedAt       time.Time
}

// Cursor marks the last item of a fetched page. Pagination is keyset on
// (created_at, id) so identical timestamps still order deterministically.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
