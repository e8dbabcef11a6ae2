package app

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"letterdesk/api/internal/auth"
	"letterdesk/api/internal/authpw"
	"letterdesk/api/internal/config"
	"letterdesk/api/internal/export"
	"letterdesk/api/internal/letters"
	"letterdesk/api/internal/rbac"
	"letterdesk/api/internal/store"
	"letterdesk/api/internal/util"
	"letterdesk/api/internal/view"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// ListResult is one listing response. Seq is a monotonic counter so the
// display layer can discard responses that arrive out of order; Stale marks
// responses a newer request has already superseded server-side.
type ListResult struct {
	Page  letters.Page
	Seq   int64
	Stale bool
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	SetUserRole(context.Context, string, string) (bool, error)
	InsertLetter(context.Context, store.Letter) (store.Letter, error)
	GetLetter(context.Context, string) (store.Letter, error)
	UpdateLetter(context.Context, store.Letter) (bool, error)
	DeleteLetter(context.Context, string) (bool, error)
	ListLetters(context.Context, *store.Cursor, int) ([]store.Letter, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(ctx context.Context) error
}

// refreshStore holds refresh sessions keyed by token hash. Redis serves it
// in production; the Postgres store satisfies it as a fallback.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	letters  *letters.Service
	auth     *authpw.Service

	mu        sync.Mutex
	listSeq   int64
	published int64
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions refreshStore) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		letters:  letters.NewService(dataStore),
		auth:     authpw.NewService(dataStore),
	}
}

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.auth.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.auth.SignIn(ctx, authpw.SignInRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Role is resolved at issue time, so a role change applies here.
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	role := string(rbac.Normalize(user.Role))
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	// The stored role wins over the claim so admin changes apply without
	// waiting for token expiry. A failed lookup degrades to the claim's
	// role instead of failing the request.
	userID := claims.Sub
	userName := claims.Name
	role := string(rbac.Normalize(claims.Role))
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		log.Printf(`{"level":"warn","msg":"role lookup failed, using default","userId":%q,"error":%q}`, claims.Sub, err.Error())
	} else {
		userID = user.ID
		userName = user.DisplayName
		role = string(rbac.Normalize(user.Role))
	}

	return Session{
		Token:     token,
		UserID:    userID,
		UserName:  userName,
		Role:      role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ListLetters serves one listing page. Each call takes the next sequence
// number; a response is marked stale when a later call finished publishing
// first, so the latest request always wins.
func (s *Service) ListLetters(ctx context.Context, filter string, cursor *store.Cursor) (ListResult, error) {
	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.mu.Unlock()

	page, err := s.letters.List(ctx, filter, cursor)
	if err != nil {
		return ListResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.published {
		return ListResult{Page: page, Seq: seq, Stale: true}, nil
	}
	s.published = seq
	return ListResult{Page: page, Seq: seq, Stale: false}, nil
}

func (s *Service) GetLetter(ctx context.Context, id string) (store.Letter, error) {
	return s.letters.Get(ctx, id)
}

func (s *Service) CreateLetter(ctx context.Context, fields letters.Fields) (store.Letter, error) {
	created, err := s.letters.Create(ctx, fields)
	if err != nil {
		return store.Letter{}, err
	}
	s.invalidateListing()
	return created, nil
}

func (s *Service) UpdateLetter(ctx context.Context, id string, fields letters.Fields) error {
	if err := s.letters.Update(ctx, id, fields); err != nil {
		return err
	}
	s.invalidateListing()
	return nil
}

func (s *Service) DeleteLetter(ctx context.Context, id string) error {
	if err := s.letters.Remove(ctx, id); err != nil {
		return err
	}
	s.invalidateListing()
	return nil
}

// invalidateListing bumps the sequence so in-flight listing responses
// started before the mutation report as stale.
func (s *Service) invalidateListing() {
	s.mu.Lock()
	s.listSeq++
	s.published = s.listSeq
	s.mu.Unlock()
}

func (s *Service) ExportLetter(ctx context.Context, session Session, letterID string, kind export.Kind, format export.Format) (*export.Result, error) {
	item, err := s.letters.Get(ctx, letterID)
	if err != nil {
		return nil, err
	}

	if kind == "" {
		kind = export.Kind(item.DocType)
		if kind == "" {
			kind = export.KindLetter
		}
	}

	doc := export.Document{
		SenderName:      item.SenderName,
		RecipientName:   item.RecipientName,
		Salutation:      item.Salutation,
		Title:           item.Title,
		Content:         item.Content,
		SpecificRequest: item.SpecificRequest,
		Closing:         item.Closing,
	}
	return export.Generate(doc, kind, format, rbac.Normalize(session.Role), time.Now())
}

func (s *Service) AssignRole(ctx context.Context, caller Session, targetUserID, newRole string) error {
	if !s.Can(caller.Role, rbac.ActionManageRoles) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if targetUserID == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
	}
	if !rbac.Assignable(newRole) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown role", map[string]any{"role": newRole})
	}

	found, err := s.store.SetUserRole(ctx, targetUserID, newRole)
	if err != nil {
		return err
	}
	if !found {
		return domainError(http.StatusNotFound, "NOT_FOUND", "User not found", nil)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, caller Session) ([]store.User, error) {
	if !s.Can(caller.Role, rbac.ActionManageRoles) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.store.ListUsers(ctx)
}

// ViewTransition steps the page state machine for the caller's role.
func (s *Service) ViewTransition(current view.State, role rbac.Role, event view.Event) (view.State, []view.Effect, error) {
	if !view.Valid(current) {
		return "", nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown view state", map[string]any{"state": string(current)})
	}
	next, effects := view.Next(current, role, event)
	return next, effects, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
