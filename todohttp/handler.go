// Package todohttp exposes the protected TodoList resource over HTTP. Every
// entry point authenticates the bearer token, gates on the required
// delegation scope, and keys all reads and writes by the caller's subject.
package todohttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/todolist-obo-go/auth"
	"github.com/ggoodman/todolist-obo-go/graph"
	"github.com/ggoodman/todolist-obo-go/internal/logctx"
	"github.com/ggoodman/todolist-obo-go/todo"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

const (
	authorizationHeader   = "authorization"
	wwwAuthenticateHeader = "www-authenticate"

	// challengeContentType is the exact content type that marks a 403 body as
	// an opaque claims challenge. Clients key off the (403, text/plain)
	// combination; any other 403 is a generic error.
	challengeContentType = "text/plain; charset=utf-8"

	// DefaultRequiredScope is the delegation scope gated on when Config leaves
	// RequiredScope empty.
	DefaultRequiredScope = "user_impersonation"

	maxBodySize = 1 << 20
)

// ChallengePolicy decides whether a request must present additional claims
// (for instance step-up authentication) before the operation may proceed.
// When required is true, the returned challenge string is relayed to the
// client verbatim as an opaque payload for its next token request.
type ChallengePolicy func(r *http.Request, p auth.Principal) (challenge string, required bool)

// Config wires the handler's collaborators.
type Config struct {
	// Authenticator validates inbound bearer tokens. Required.
	Authenticator auth.Authenticator

	// Store holds the to-do items. Required.
	Store todo.Store

	// Augmenter, when non-nil, decorates new item titles with the caller's
	// downstream profile. Augmentation failure never blocks the write.
	Augmenter *graph.Augmenter

	// RequiredScope is the delegation scope every operation gates on.
	// Defaults to DefaultRequiredScope.
	RequiredScope string

	// Realm appears in WWW-Authenticate challenges. Defaults to "todolist".
	Realm string

	// ChallengePolicy, when non-nil, is consulted after the scope gate and may
	// demand additional claims via the 403 text/plain convention.
	ChallengePolicy ChallengePolicy

	// Log receives structured request logs. Defaults to slog.Default().
	Log *slog.Logger
}

// Handler serves GET and POST /api/todolist.
type Handler struct {
	authn         auth.Authenticator
	store         todo.Store
	augmenter     *graph.Augmenter
	requiredScope string
	realm         string
	challenge     ChallengePolicy
	log           *slog.Logger
	mux           *http.ServeMux
	now           func() time.Time
}

var _ http.Handler = (*Handler)(nil)

// New validates cfg and constructs the handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Authenticator == nil {
		return nil, errors.New("todohttp: Authenticator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("todohttp: Store is required")
	}
	if cfg.RequiredScope == "" {
		cfg.RequiredScope = DefaultRequiredScope
	}
	if cfg.Realm == "" {
		cfg.Realm = "todolist"
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		authn:         cfg.Authenticator,
		store:         cfg.Store,
		augmenter:     cfg.Augmenter,
		requiredScope: cfg.RequiredScope,
		realm:         cfg.Realm,
		challenge:     cfg.ChallengePolicy,
		log:           slog.New(logctx.Handler{Handler: log.Handler()}),
		mux:           http.NewServeMux(),
		now:           time.Now,
	}
	h.mux.HandleFunc("GET /api/todolist", h.handleList)
	h.mux.HandleFunc("POST /api/todolist", h.handleCreate)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// authorize runs the full entry gate: bearer extraction, token validation,
// scope check, then the optional claims-challenge policy. It writes the
// response itself and returns an empty subject when the request must not
// proceed. The gate runs on every call; nothing about its outcome is cached.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (auth.Principal, string) {
	ctx := r.Context()

	authHeader := r.Header.Get(authorizationHeader)
	if authHeader == "" {
		w.Header().Add(wwwAuthenticateHeader, fmt.Sprintf(`Bearer realm=%q, error="invalid_token", error_description="no token provided"`, h.realm))
		w.WriteHeader(http.StatusUnauthorized)
		h.log.InfoContext(ctx, "auth.missing_header")
		return nil, ""
	}
	tok, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tok == "" {
		w.Header().Add(wwwAuthenticateHeader, fmt.Sprintf(`Bearer realm=%q, error="invalid_request", error_description="invalid authorization header"`, h.realm))
		w.WriteHeader(http.StatusBadRequest)
		h.log.InfoContext(ctx, "auth.malformed_header")
		return nil, ""
	}

	p, err := h.authn.CheckAuthentication(ctx, tok)
	if err != nil {
		w.Header().Add(wwwAuthenticateHeader, fmt.Sprintf(`Bearer realm=%q, error="invalid_token"`, h.realm))
		w.WriteHeader(http.StatusUnauthorized)
		h.log.InfoContext(ctx, "auth.invalid_token", slog.String("err", err.Error()))
		return nil, ""
	}

	subject, err := auth.RequireScope(p, h.requiredScope)
	if err != nil {
		w.Header().Add(wwwAuthenticateHeader, fmt.Sprintf(`Bearer realm=%q, error="insufficient_scope", error_description=%q`, h.realm, err.Error()))
		w.WriteHeader(http.StatusUnauthorized)
		h.log.InfoContext(ctx, "auth.insufficient_scope", slog.String("subject", p.Subject()))
		return nil, ""
	}

	if h.challenge != nil {
		if challenge, required := h.challenge(r, p); required {
			w.Header().Set("Content-Type", challengeContentType)
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, challenge)
			h.log.InfoContext(ctx, "auth.claims_challenge", slog.String("subject", subject))
			return nil, ""
		}
	}

	return p, subject
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p, subject := h.authorize(w, r)
	if p == nil {
		return
	}
	ctx := logctx.WithPrincipalData(r.Context(), &logctx.PrincipalData{
		Subject: subject,
		Scopes:  strings.Join(p.Scopes(), " "),
	})

	items, err := h.store.ListByOwner(ctx, subject)
	if err != nil {
		h.log.ErrorContext(ctx, "todolist.list_failed", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(items); err != nil {
		h.log.ErrorContext(ctx, "todolist.encode_failed", slog.String("err", err.Error()))
	}
}

type createRequest struct {
	Title string `json:"title"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, subject := h.authorize(w, r)
	if p == nil {
		return
	}
	ctx := logctx.WithPrincipalData(r.Context(), &logctx.PrincipalData{
		Subject: subject,
		Scopes:  strings.Join(p.Scopes(), " "),
	})

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		h.log.InfoContext(ctx, "todolist.unsupported_media_type")
		return
	}

	var req createRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.log.InfoContext(ctx, "todolist.bad_body", slog.String("err", err.Error()))
		return
	}

	// Whitespace-only titles are dropped without error. Checking before the
	// downstream call avoids a wasted exchange.
	if strings.TrimSpace(req.Title) == "" {
		w.WriteHeader(http.StatusNoContent)
		h.log.InfoContext(ctx, "todolist.empty_title_noop")
		return
	}

	title := req.Title
	if h.augmenter != nil {
		if profile := h.augmenter.Augment(ctx, p); profile != nil {
			title = fmt.Sprintf("%s, First Name: %s, Last Name: %s", title, profile.GivenName, profile.Surname)
		}
	}

	item := todo.Item{
		ID:        uuid.New(),
		Title:     title,
		Owner:     subject,
		CreatedAt: h.now(),
	}
	if err := h.store.Append(ctx, item); err != nil {
		h.log.ErrorContext(ctx, "todolist.append_failed", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.InfoContext(ctx, "todolist.created", slog.String("id", item.ID.String()))
	w.WriteHeader(http.StatusNoContent)
}
