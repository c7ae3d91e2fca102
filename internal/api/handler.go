// Package api serves the REST endpoints of the terminal server: password
// login with token rotation, tmux session management and tunnel control.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JongoDB/arc4de/internal/jwtauth"
	"github.com/JongoDB/arc4de/internal/metrics"
	"github.com/JongoDB/arc4de/internal/middleware"
	"github.com/JongoDB/arc4de/internal/plugins"
	"github.com/JongoDB/arc4de/internal/tmuxctl"
	"github.com/JongoDB/arc4de/internal/tools"
	"github.com/JongoDB/arc4de/internal/tunnel"
)

const (
	defaultMaxLoginAttempts = 5
	defaultLoginWindow      = time.Minute
	defaultLoginLockout     = 15 * time.Minute
)

// SessionManager is the tmux side of the API, satisfied by
// tmuxctl.Manager.
type SessionManager interface {
	List() ([]tmuxctl.SessionInfo, error)
	Create(name string) (tmuxctl.SessionInfo, error)
	Kill(sessionID string) error
	SendKeys(sessionID, keys string) error
}

// TunnelManager is the tunnel side of the API, satisfied by
// tunnel.Manager. Nil when tunneling is disabled.
type TunnelManager interface {
	Info() tunnel.Info
	StartPreview(ctx context.Context, port int) (string, error)
	StopPreview(port int)
}

// Config of the API handler.
type Config struct {
	// Password accepted by the login endpoint.
	Password string

	MaxLoginAttempts int
	LoginWindow      time.Duration
	LoginLockout     time.Duration
}

// Handler serves the /api tree.
type Handler struct {
	config   Config
	issuer   *jwtauth.Issuer
	store    *jwtauth.RefreshStore
	limiter  *jwtauth.LoginLimiter
	sessions SessionManager
	tunnels  TunnelManager
	plugins  *plugins.Manager
	mux      *http.ServeMux
}

// NewHandler creates the API handler. tunnels and plugs may be nil.
func NewHandler(c Config, issuer *jwtauth.Issuer, sessions SessionManager, tunnels TunnelManager, plugs *plugins.Manager) *Handler {
	if c.MaxLoginAttempts == 0 {
		c.MaxLoginAttempts = defaultMaxLoginAttempts
	}
	if c.LoginWindow == 0 {
		c.LoginWindow = defaultLoginWindow
	}
	if c.LoginLockout == 0 {
		c.LoginLockout = defaultLoginLockout
	}
	h := &Handler{
		config:   c,
		issuer:   issuer,
		store:    jwtauth.NewRefreshStore(),
		limiter:  jwtauth.NewLoginLimiter(c.MaxLoginAttempts, c.LoginWindow, c.LoginLockout),
		sessions: sessions,
		tunnels:  tunnels,
		plugins:  plugs,
		mux:      http.NewServeMux(),
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	auth := middleware.NewBearerAuth(func(token string) error {
		_, err := h.issuer.VerifyAccess(token)
		return err
	})
	protected := func(fn http.HandlerFunc) http.Handler {
		return auth.Middleware(fn)
	}

	h.mux.HandleFunc("POST /api/auth/login", h.login)
	h.mux.HandleFunc("POST /api/auth/refresh", h.refresh)
	h.mux.Handle("POST /api/auth/logout", protected(h.logout))

	h.mux.Handle("GET /api/sessions", protected(h.listSessions))
	h.mux.Handle("POST /api/sessions", protected(h.createSession))
	h.mux.Handle("DELETE /api/sessions/{id}", protected(h.deleteSession))

	h.mux.Handle("GET /api/plugins", protected(h.listPlugins))

	h.mux.Handle("GET /api/tunnel", protected(h.tunnelInfo))
	h.mux.Handle("POST /api/tunnel/previews", protected(h.startPreview))
	h.mux.Handle("DELETE /api/tunnel/previews/{port}", protected(h.stopPreview))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if h.limiter.IsLocked() {
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		writeError(w, http.StatusTooManyRequests, "Too many failed attempts. Login locked temporarily.")
		return
	}

	if !tools.SecureCompareString(req.Password, h.config.Password) {
		h.limiter.RecordFailure()
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	h.limiter.Reset()

	pair, jti, err := h.issuer.NewTokenPair()
	if err != nil {
		log.Error().Err(err).Msg("error creating token pair")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.store.Add(jti)
	metrics.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	claims, err := h.issuer.VerifyRefresh(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	if !h.store.IsValid(claims.ID) {
		writeError(w, http.StatusUnauthorized, "Refresh token has been revoked or already used")
		return
	}

	pair, jti, err := h.issuer.NewTokenPair()
	if err != nil {
		log.Error().Err(err).Msg("error creating token pair")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.store.Rotate(claims.ID, jti); err != nil {
		writeError(w, http.StatusUnauthorized, "Refresh token has been revoked or already used")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// An invalid refresh token means nothing to revoke, still a 200.
	if claims, err := h.issuer.VerifyRefresh(req.RefreshToken); err == nil {
		h.store.Revoke(claims.ID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List()
	if err != nil {
		log.Error().Err(err).Msg("error listing sessions")
		writeError(w, http.StatusInternalServerError, "error listing sessions")
		return
	}
	if sessions == nil {
		sessions = []tmuxctl.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	Name   string `json:"name"`
	Plugin string `json:"plugin"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var launch string
	if req.Plugin != "" {
		if h.plugins == nil {
			writeError(w, http.StatusBadRequest, "Unknown plugin: "+req.Plugin)
			return
		}
		p, ok := h.plugins.Get(req.Plugin)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown plugin: "+req.Plugin)
			return
		}
		launch = p.Command()
	}

	info, err := h.sessions.Create(req.Name)
	if err != nil {
		log.Error().Err(err).Msg("error creating session")
		writeError(w, http.StatusInternalServerError, "error creating session")
		return
	}
	if launch != "" {
		// The session is usable even if the plugin CLI failed to start.
		if err := h.sessions.SendKeys(info.SessionID, launch); err != nil {
			log.Warn().Err(err).Str("session_id", info.SessionID).Str("plugin", req.Plugin).Msg("error launching plugin command")
		}
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) listPlugins(w http.ResponseWriter, r *http.Request) {
	if h.plugins == nil {
		writeJSON(w, http.StatusOK, []plugins.Info{})
		return
	}
	writeJSON(w, http.StatusOK, h.plugins.Describe())
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.Kill(id); err != nil {
		if errors.Is(err, tmuxctl.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error().Err(err).Str("session_id", id).Msg("error killing session")
		writeError(w, http.StatusInternalServerError, "error killing session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) tunnelInfo(w http.ResponseWriter, r *http.Request) {
	if h.tunnels == nil {
		writeJSON(w, http.StatusOK, tunnel.Info{Previews: []tunnel.Preview{}})
		return
	}
	writeJSON(w, http.StatusOK, h.tunnels.Info())
}

type previewRequest struct {
	Port int `json:"port"`
}

func (h *Handler) startPreview(w http.ResponseWriter, r *http.Request) {
	if h.tunnels == nil {
		writeError(w, http.StatusServiceUnavailable, "tunneling disabled")
		return
	}
	var req previewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Port <= 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid port")
		return
	}
	url, err := h.tunnels.StartPreview(r.Context(), req.Port)
	if err != nil {
		log.Error().Err(err).Int("port", req.Port).Msg("error starting preview tunnel")
		writeError(w, http.StatusBadGateway, "error starting preview tunnel")
		return
	}
	writeJSON(w, http.StatusOK, tunnel.Preview{Port: req.Port, URL: url})
}

func (h *Handler) stopPreview(w http.ResponseWriter, r *http.Request) {
	if h.tunnels == nil {
		writeError(w, http.StatusServiceUnavailable, "tunneling disabled")
		return
	}
	port, err := strconv.Atoi(r.PathValue("port"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid port")
		return
	}
	h.tunnels.StopPreview(port)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
