package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/smith3v/quizsync/pkg/logger"
)

const maxBodyBytes = 8 << 20

type ServerOptions struct {
	Addr string
	// Auth verifies bearer tokens. Without it only anonymous devices are served.
	Auth           *Authenticator
	AllowAnonymous bool
	AllowedOrigins []string
}

// Server exposes a Store over HTTP for devices running the sync engine.
type Server struct {
	store      Store
	opts       ServerOptions
	httpServer *http.Server
}

func NewServer(store Store, opts ServerOptions) *Server {
	s := &Server{store: store, opts: opts}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.Handle("GET /v1/users/{userID}/{collection}", s.authorize(s.fetch))
	mux.Handle("POST /v1/users/{userID}/{collection}", s.authorize(s.upsert))

	return cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(mux)
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	logger.Info("remote store listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down remote store")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorize admits a request when its bearer token's subject is the path
// user, or when anonymous access is on and the path user is a device UUID.
func (s *Server) authorize(next http.HandlerFunc) http.Handler {
	check := jwtmiddleware.New(s.validateToken,
		jwtmiddleware.WithCredentialsOptional(true),
		jwtmiddleware.WithErrorHandler(tokenError),
	)
	return check.CheckJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("userID")
		subject, hasToken := r.Context().Value(jwtmiddleware.ContextKey{}).(string)

		switch {
		case hasToken:
			if subject != userID {
				http.Error(w, "token does not match user", http.StatusForbidden)
				return
			}
		case s.opts.AllowAnonymous:
			if _, err := uuid.Parse(userID); err != nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
		default:
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}))
}

// validateToken hands the verified subject to the middleware, which stores
// it under jwtmiddleware.ContextKey.
func (s *Server) validateToken(_ context.Context, token string) (interface{}, error) {
	if s.opts.Auth == nil {
		return nil, fmt.Errorf("%w: token authentication is not configured", ErrUnauthorized)
	}
	return s.opts.Auth.Verify(token)
}

func tokenError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Debug("rejected bearer token", "path", r.URL.Path, "error", err)
	if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	http.Error(w, "invalid token", http.StatusUnauthorized)
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCollection(r.PathValue("collection"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	rows, err := s.store.Fetch(r.Context(), c, r.PathValue("userID"))
	if err != nil {
		logger.Error("failed to fetch rows", "collection", c, "error", err)
		http.Error(w, "failed to fetch rows", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) upsert(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCollection(r.PathValue("collection"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	userID := r.PathValue("userID")

	var rows []Row
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&rows); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	for i := range rows {
		if rows[i].UserID == "" {
			rows[i].UserID = userID
		}
		if rows[i].UserID != userID {
			http.Error(w, "row belongs to another user", http.StatusForbidden)
			return
		}
		if err := rows[i].Validate(c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := s.store.Upsert(r.Context(), c, rows); err != nil {
		logger.Error("failed to upsert rows", "collection", c, "rows", len(rows), "error", err)
		http.Error(w, "failed to store rows", http.StatusInternalServerError)
		return
	}
	logger.Debug("rows upserted", "collection", c, "user_id", userID, "rows", len(rows))
	writeJSON(w, http.StatusOK, map[string]int{"upserted": len(rows)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}
