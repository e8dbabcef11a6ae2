package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"letterdesk/api/internal/auth"
	"letterdesk/api/internal/authpw"
	"letterdesk/api/internal/export"
	"letterdesk/api/internal/letters"
	"letterdesk/api/internal/metrics"
	"letterdesk/api/internal/rbac"
	"letterdesk/api/internal/session"
	"letterdesk/api/internal/store"
	"letterdesk/api/internal/view"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    metrics.Recorder
	metricsH   http.Handler
}

func NewHTTPServer(service *Service, corsOrigin string, recorder metrics.Recorder, metricsHandler http.Handler) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		metrics:    recorder,
		metricsH:   metricsHandler,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" && s.metricsH != nil {
		w.Header().Del("Content-Type")
		s.metricsH.ServeHTTP(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		sess, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      sess.UserName,
			"userId":        sess.UserID,
			"role":          sess.Role,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			s.recordAuthFailure()
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(sess))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		sess := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				sess = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), sess, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/view/transition" {
		s.handleViewTransition(w, r)
		return
	}

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/letters" {
		if !s.service.Can(sess.Role, rbac.ActionRead) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		filter := strings.TrimSpace(r.URL.Query().Get("filter"))
		cursor, err := decodeCursor(strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cursor is malformed", nil)
			return
		}
		result, err := s.service.ListLetters(r.Context(), filter, cursor)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		items := make([]map[string]any, 0, len(result.Page.Items))
		for _, item := range result.Page.Items {
			items = append(items, letterPayload(item))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":      items,
			"nextCursor": encodeCursor(result.Page.NextCursor),
			"seq":        result.Seq,
			"stale":      result.Stale,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/letters" {
		if !s.service.Can(sess.Role, rbac.ActionWrite) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		fields, err := decodeLetterFields(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.CreateLetter(r.Context(), fields)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, letterPayload(created))
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/letters/{id} and /api/letters/{id}/export
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "letters" {
		letterID := parts[2]

		if len(parts) == 4 && parts[3] == "export" && r.Method == http.MethodGet {
			s.handleExport(w, r, sess, letterID)
			return
		}

		if len(parts) == 3 {
			switch r.Method {
			case http.MethodGet:
				if !s.service.Can(sess.Role, rbac.ActionRead) {
					writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
					return
				}
				item, err := s.service.GetLetter(r.Context(), letterID)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, letterPayload(item))
				return
			case http.MethodPut:
				if !s.service.Can(sess.Role, rbac.ActionWrite) {
					writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
					return
				}
				fields, err := decodeLetterFields(r)
				if err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				if err := s.service.UpdateLetter(r.Context(), letterID, fields); err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			case http.MethodDelete:
				if !s.service.Can(sess.Role, rbac.ActionDelete) {
					writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
					return
				}
				if err := s.service.DeleteLetter(r.Context(), letterID); err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
		}
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/users" {
		users, err := s.service.ListUsers(r.Context(), sess)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		items := make([]map[string]any, 0, len(users))
		for _, user := range users {
			items = append(items, map[string]any{
				"id":    user.ID,
				"email": user.Email,
				"name":  user.DisplayName,
				"role":  user.Role,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": items})
		return
	}

	// /api/users/{id}/role
	if len(parts) == 4 && parts[0] == "api" && parts[1] == "users" && parts[3] == "role" && r.Method == http.MethodPut {
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.AssignRole(r.Context(), sess, parts[2], body.Role); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
		"sessions": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if pinger, ok := s.service.sessions.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["sessions"] = map[string]any{"status": "error", "error": err.Error()}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	sess, err := s.service.SignUp(r.Context(), body.Email, body.Password, body.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrEmailRegistered):
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		case errors.Is(err, authpw.ErrMissingFields),
			errors.Is(err, authpw.ErrInvalidEmail),
			errors.Is(err, authpw.ErrWeakPassword):
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		default:
			writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		}
		return
	}

	writeJSON(w, http.StatusCreated, sessionPayload(sess))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	sess, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, authpw.ErrMissingFields) {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			s.recordAuthFailure()
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleViewTransition(w http.ResponseWriter, r *http.Request) {
	// The pre-auth sections (guest, login, registration) are reachable
	// without a session; navigation gates fall back to the weakest role.
	role := rbac.RoleViewer
	if token := bearerToken(r); token != "" {
		if sess, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			role = rbac.Normalize(sess.Role)
		}
	}

	var body struct {
		State string `json:"state"`
		Event struct {
			Kind   string `json:"kind"`
			Target string `json:"target"`
		} `json:"event"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	current := view.State(body.State)
	if body.State == "" {
		current = view.Initial()
	}

	next, effects, err := s.service.ViewTransition(current, role, view.Event{
		Kind:   view.EventKind(body.Event.Kind),
		Target: view.State(body.Event.Target),
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	payload := make([]map[string]any, 0, len(effects))
	for _, effect := range effects {
		payload = append(payload, map[string]any{
			"kind":    string(effect.Kind),
			"section": string(effect.Section),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   string(next),
		"effects": payload,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, sess Session, letterID string) {
	kind := export.Kind(strings.TrimSpace(r.URL.Query().Get("kind")))
	format := export.Format(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = export.FormatPDF
	}
	if format != export.FormatPDF && format != export.FormatDOCX {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
		return
	}

	result, err := s.service.ExportLetter(r.Context(), sess, letterID, kind, format)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordExport(string(format))
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			s.recordAuthFailure()
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) recordAuthFailure() {
	if s.metrics != nil {
		s.metrics.RecordAuthFailure()
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		if s.metrics != nil {
			s.metrics.RecordRequest(r.Method, writer.status)
			s.metrics.RecordRequestDuration(time.Since(started))
		}

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func decodeLetterFields(r *http.Request) (letters.Fields, error) {
	var body struct {
		SenderName      string `json:"senderName"`
		RecipientName   string `json:"recipientName"`
		Salutation      string `json:"salutation"`
		Title           string `json:"title"`
		Content         string `json:"content"`
		SpecificRequest string `json:"specificRequest"`
		Closing         string `json:"closing"`
		DocType         string `json:"docType"`
	}
	if err := decodeBody(r, &body); err != nil {
		return letters.Fields{}, err
	}
	return letters.Fields{
		SenderName:      body.SenderName,
		RecipientName:   body.RecipientName,
		Salutation:      body.Salutation,
		Title:           body.Title,
		Content:         body.Content,
		SpecificRequest: body.SpecificRequest,
		Closing:         body.Closing,
		DocType:         body.DocType,
	}, nil
}

func letterPayload(item store.Letter) map[string]any {
	return map[string]any{
		"id":              item.ID,
		"senderName":      item.SenderName,
		"recipientName":   item.RecipientName,
		"salutation":      item.Salutation,
		"title":           item.Title,
		"content":         item.Content,
		"specificRequest": item.SpecificRequest,
		"closing":         item.Closing,
		"docType":         item.DocType,
		"createdAt":       item.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"accessToken":  sess.Token,
		"refreshToken": sess.RefreshToken,
		"userId":       sess.UserID,
		"userName":     sess.UserName,
		"role":         sess.Role,
		"expiresAt":    sess.ExpiresAt.Unix(),
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

type cursorPayload struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func encodeCursor(cursor *store.Cursor) any {
	if cursor == nil {
		return nil
	}
	raw, err := json.Marshal(cursorPayload{CreatedAt: cursor.CreatedAt, ID: cursor.ID})
	if err != nil {
		return nil
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(value string) (*store.Cursor, error) {
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" || payload.CreatedAt.IsZero() {
		return nil, fmt.Errorf("incomplete cursor")
	}
	return &store.Cursor{CreatedAt: payload.CreatedAt, ID: payload.ID}, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var validationErr *letters.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", validationErr.Error(),
			map[string]any{"field": validationErr.Field, "reason": validationErr.Reason}
	}
	var formatErr *export.FormatError
	if errors.As(err, &formatErr) {
		return http.StatusUnprocessableEntity, "FORMAT_ERROR", formatErr.Error(),
			map[string]any{"field": formatErr.Field}
	}
	var repoErr *letters.RepositoryError
	if errors.As(err, &repoErr) {
		return http.StatusBadGateway, "REPOSITORY_ERROR", "Storage operation failed", nil
	}

	switch {
	case errors.Is(err, letters.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, export.ErrFormatForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Export format not permitted", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export backend unavailable", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}

	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
