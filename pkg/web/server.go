// Package web serves the bridge monitor API: health, token-based login,
// and read access to the latest bridged arm state over HTTP and
// WebSocket.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/samparadis/dvrk-ros/pkg/core"
	"github.com/samparadis/dvrk-ros/pkg/msgs"
)

// StateSource exposes the bridged arm state the monitor reads from.
type StateSource interface {
	// Arms lists the bridged arm names.
	Arms() []string

	// StateJointDesired returns the latest desired joint state for the
	// named arm. The second return is false when the arm is unknown or
	// has not received a state yet.
	StateJointDesired(name string) (msgs.StateJoint, bool)
}

// Config holds the monitor server settings.
type Config struct {
	Addr         string
	Username     string
	PasswordHash string
	JWTSecret    string

	// TokenTTL bounds issued token lifetime. Zero means one hour.
	TokenTTL time.Duration
}

// Server is the monitor HTTP server.
type Server struct {
	cfg    Config
	source StateSource
	logger core.Logger
	srv    *http.Server
	ln     net.Listener
}

// NewServer creates a monitor server over the given state source.
func NewServer(cfg Config, source StateSource, logger core.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("monitor: jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	s := &Server{cfg: cfg, source: source, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /arms", s.authenticated(s.handleArms))
	mux.HandleFunc("GET /state/{arm}", s.authenticated(s.handleState))
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.WithFields(map[string]interface{}{"addr": ln.Addr().String()}).Info("monitor server listening")
	go s.srv.Serve(ln) //nolint:errcheck
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username != s.cfg.Username ||
		bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		s.logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("token signing failed")
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: signed})
}

func (s *Server) handleArms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"arms": s.source.Arms()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("arm")
	state, ok := s.source.StateJointDesired(name)
	if !ok {
		writeError(w, http.StatusNotFound, "no state for arm "+name)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// authenticated requires a valid bearer token on the request.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.verifyToken(bearerToken(r)); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) verifyToken(raw string) error {
	if raw == "" {
		return fmt.Errorf("missing token")
	}
	_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	return err
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token query parameter for WebSocket clients.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HashPassword produces a bcrypt hash suitable for the password_hash
// config field.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
