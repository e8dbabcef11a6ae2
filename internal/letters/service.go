// Package letters is the repository facade for letter/agenda records. It
// validates input, assigns ids, and pages the listing in descending creation
// order. Title filtering is applied to the fetched page, not the underlying
// stream, so a filtered page may carry fewer than PageSize items while later
// pages still hold matches. That mirrors the tool's observed behavior and is
// kept deliberately; callers paginate through NextCursor to find the rest.
package letters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"letterdesk/api/internal/store"
	"letterdesk/api/internal/util"
)

// PageSize is the fixed unfiltered page size for listings.
const PageSize = 10

// MaxTitleLen bounds the title field.
const MaxTitleLen = 100

var ErrNotFound = errors.New("letter not found")

// ValidationError reports a field that failed input validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RepositoryError wraps a backend read/write failure. It is transient from
// the caller's point of view and is never auto-retried here.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// Fields is the writable portion of a letter.
type Fields struct {
	SenderName      string
	RecipientName   string
	Salutation      string
	Title           string
	Content         string
	SpecificRequest string
	Closing         string
	DocType         string
}

// Page is one listing page after filtering.
type Page struct {
	Items      []store.Letter
	NextCursor *store.Cursor
}

type letterStore interface {
	InsertLetter(ctx context.Context, item store.Letter) (store.Letter, error)
	GetLetter(ctx context.Context, letterID string) (store.Letter, error)
	UpdateLetter(ctx context.Context, item store.Letter) (bool, error)
	DeleteLetter(ctx context.Context, letterID string) (bool, error)
	ListLetters(ctx context.Context, cursor *store.Cursor, limit int) ([]store.Letter, error)
}

type Service struct {
	store letterStore
}

func NewService(store letterStore) *Service {
	return &Service{store: store}
}

// List fetches one page and filters it in place by case-insensitive title
// substring. NextCursor is set whenever the unfiltered fetch was full, even
// if filtering emptied the page.
func (s *Service) List(ctx context.Context, filter string, cursor *store.Cursor) (Page, error) {
	fetched, err := s.store.ListLetters(ctx, cursor, PageSize)
	if err != nil {
		return Page{}, &RepositoryError{Op: "list", Err: err}
	}

	var next *store.Cursor
	if len(fetched) == PageSize {
		last := fetched[len(fetched)-1]
		next = &store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	needle := strings.ToLower(strings.TrimSpace(filter))
	items := make([]store.Letter, 0, len(fetched))
	for _, item := range fetched {
		if needle == "" || strings.Contains(strings.ToLower(item.Title), needle) {
			items = append(items, item)
		}
	}
	return Page{Items: items, NextCursor: next}, nil
}

func (s *Service) Get(ctx context.Context, id string) (store.Letter, error) {
	item, err := s.store.GetLetter(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Letter{}, ErrNotFound
		}
		return store.Letter{}, &RepositoryError{Op: "get", Err: err}
	}
	return item, nil
}

func (s *Service) Create(ctx context.Context, fields Fields) (store.Letter, error) {
	trimmed, err := validate(fields)
	if err != nil {
		return store.Letter{}, err
	}
	item := store.Letter{
		ID:              util.NewID("ltr"),
		SenderName:      trimmed.SenderName,
		RecipientName:   trimmed.RecipientName,
		Salutation:      trimmed.Salutation,
		Title:           trimmed.Title,
		Content:         trimmed.Content,
		SpecificRequest: trimmed.SpecificRequest,
		Closing:         trimmed.Closing,
		DocType:         trimmed.DocType,
	}
	created, err := s.store.InsertLetter(ctx, item)
	if err != nil {
		return store.Letter{}, &RepositoryError{Op: "create", Err: err}
	}
	return created, nil
}

// Update replaces all fields of an existing letter, preserving its id and
// original creation timestamp.
func (s *Service) Update(ctx context.Context, id string, fields Fields) error {
	trimmed, err := validate(fields)
	if err != nil {
		return err
	}
	found, err := s.store.UpdateLetter(ctx, store.Letter{
		ID:              id,
		SenderName:      trimmed.SenderName,
		RecipientName:   trimmed.RecipientName,
		Salutation:      trimmed.Salutation,
		Title:           trimmed.Title,
		Content:         trimmed.Content,
		SpecificRequest: trimmed.SpecificRequest,
		Closing:         trimmed.Closing,
		DocType:         trimmed.DocType,
	})
	if err != nil {
		return &RepositoryError{Op: "update", Err: err}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// Remove deletes immediately; there is no undo. Removing an id that is
// already gone reports ErrNotFound.
func (s *Service) Remove(ctx context.Context, id string) error {
	found, err := s.store.DeleteLetter(ctx, id)
	if err != nil {
		return &RepositoryError{Op: "remove", Err: err}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func validate(fields Fields) (Fields, error) {
	trimmed := Fields{
		SenderName:      strings.TrimSpace(fields.SenderName),
		RecipientName:   strings.TrimSpace(fields.RecipientName),
		Salutation:      strings.TrimSpace(fields.Salutation),
		Title:           strings.TrimSpace(fields.Title),
		Content:         strings.TrimSpace(fields.Content),
		SpecificRequest: strings.TrimSpace(fields.SpecificRequest),
		Closing:         strings.TrimSpace(fields.Closing),
		DocType:         strings.TrimSpace(fields.DocType),
	}
	required := []struct {
		name  string
		value string
	}{
		{"senderName", trimmed.SenderName},
		{"recipientName", trimmed.RecipientName},
		{"salutation", trimmed.Salutation},
		{"title", trimmed.Title},
		{"content", trimmed.Content},
		{"specificRequest", trimmed.SpecificRequest},
		{"closing", trimmed.Closing},
	}
	for _, field := range required {
		if field.value == "" {
			return Fields{}, &ValidationError{Field: field.name, Reason: "must not be blank"}
		}
	}
	if len([]rune(trimmed.Title)) > MaxTitleLen {
		return Fields{}, &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLen)}
	}
	switch trimmed.DocType {
	case "", "letter", "agenda":
	default:
		return Fields{}, &ValidationError{Field: "type", Reason: "must be letter or agenda"}
	}
	return trimmed, nil
}
