package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/config"
	"github.com/ButyrinIA/comet/internal/graphql"
	"github.com/ButyrinIA/comet/internal/loader"
	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	gql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const tokenTTL = 24 * time.Hour

type Server struct {
	cfg     *config.Config
	handler http.Handler
	log     *zap.Logger
}

func New(cfg *config.Config, schema *gql.Schema, store loader.Store, log *zap.Logger) *Server {
	s := &Server{cfg: cfg, log: logger.OrDefault(log)}

	query := s.withViewer(loader.Middleware(store, cfg.Feed.LoaderWait)(&relay.Handler{Schema: schema}))

	mux := http.NewServeMux()
	mux.Handle("/{$}", playground.Handler("Comet GraphQL", "/query"))
	mux.Handle("/query", query)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Server.DevTokens {
		mux.HandleFunc("/token", s.tokenHandler)
	}

	s.handler = s.logRequests(mux)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run слушает порт до отмены ctx, затем корректно останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server started", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// withViewer достает зрителя из Bearer-токена. Запрос без токена анонимный,
// с неверным токеном - отклоняется.
func (s *Server) withViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, apperr.Unauthorized("authorization header must use the Bearer scheme"))
			return
		}
		userID, err := validateJWT(s.cfg.Server.JWTSecret, token)
		if err != nil {
			s.log.Debug("invalid token", zap.Error(err))
			writeError(w, apperr.Unauthorized("invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(graphql.WithViewer(r.Context(), userID)))
	})
}

// tokenHandler выдает токен для разработки: /token?user_id=...
func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, apperr.Validation("user_id", "user_id is required"))
		return
	}
	token, err := generateToken(s.cfg.Server.JWTSecret, userID, time.Now())
	if err != nil {
		s.log.Error("token generation failed", zap.Error(err))
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func generateToken(secret, userID string, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(tokenTTL).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func validateJWT(secret, tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("token has no user_id")
	}
	return userID, nil
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	body := map[string]interface{}{
		"message":    "internal error",
		"extensions": map[string]interface{}{"code": string(code)},
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body = map[string]interface{}{"message": ae.Message, "extensions": ae.Extensions()}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.StatusCode())
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"errors": []interface{}{body}})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
