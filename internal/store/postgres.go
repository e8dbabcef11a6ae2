package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at
		FROM users
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, role, created_at
		FROM users
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

// SetUserRole updates the single role value for a profile. It reports
// whether the target existed.
func (s *PostgresStore) SetUserRole(ctx context.Context, userID, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role=$2 WHERE id=$1`, userID, role)
	if err != nil {
		return false, fmt.Errorf("set user role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set user role result: %w", err)
	}
	return affected > 0, nil
}

// Letters

func (s *PostgresStore) InsertLetter(ctx context.Context, item Letter) (Letter, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO letters (id, sender_name, recipient_name, salutation, title, content, specific_request, closing, doc_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, item.ID, item.SenderName, item.RecipientName, item.Salutation, item.Title, item.Content,
		item.SpecificRequest, item.Closing, item.DocType).Scan(&item.CreatedAt)
	if err != nil {
		return Letter{}, fmt.Errorf("insert letter: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetLetter(ctx context.Context, letterID string) (Letter, error) {
	var item Letter
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sender_name, recipient_name, salutation, title, content, specific_request, closing, doc_type, created_at
		FROM letters
		WHERE id=$1
	`, letterID).Scan(&item.ID, &item.SenderName, &item.RecipientName, &item.Salutation, &item.Title,
		&item.Content, &item.SpecificRequest, &item.Closing, &item.DocType, &item.CreatedAt)
	if err != nil {
		return Letter{}, err
	}
	return item, nil
}

// UpdateLetter replaces every field except id and created_at. It reports
// whether the letter existed.
func (s *PostgresStore) UpdateLetter(ctx context.Context, item Letter) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE letters
		SET sender_name=$2, recipient_name=$3, salutation=$4, title=$5, content=$6, specific_request=$7, closing=$8, doc_type=$9
		WHERE id=$1
	`, item.ID, item.SenderName, item.RecipientName, item.Salutation, item.Title, item.Content,
		item.SpecificRequest, item.Closing, item.DocType)
	if err != nil {
		return false, fmt.Errorf("update letter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update letter result: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteLetter(ctx context.Context, letterID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM letters WHERE id=$1`, letterID)
	if err != nil {
		return false, fmt.Errorf("delete letter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete letter result: %w", err)
	}
	return affected > 0, nil
}

// ListLetters fetches one page of limit letters ordered by created_at
// descending, continuing after cursor when set. Title filtering happens in
// the caller, after the fetch.
func (s *PostgresStore) ListLetters(ctx context.Context, cursor *Cursor, limit int) ([]Letter, error) {
	const base = `
		SELECT id, sender_name, recipient_name, salutation, title, content, specific_request, closing, doc_type, created_at
		FROM letters
	`
	var rows *sql.Rows
	var err error
	if cursor == nil {
		rows, err = s.db.QueryContext(ctx, base+`
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, base+`
			WHERE (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, cursor.CreatedAt, cursor.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()

	items := make([]Letter, 0, limit)
	for rows.Next() {
		var item Letter
		if err := rows.Scan(&item.ID, &item.SenderName, &item.RecipientName, &item.Salutation, &item.Title,
			&item.Content, &item.SpecificRequest, &item.Closing, &item.DocType, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate letters: %w", err)
	}
	return items, nil
}

// Refresh sessions (Postgres fallback when Redis is not configured)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// Revoked access tokens

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// IsNotFound reports whether err is the driver's no-rows error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
