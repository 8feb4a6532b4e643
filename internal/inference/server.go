// internal/inference/server.go
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mwiater/cardia/internal/appconfig"
	"github.com/mwiater/cardia/internal/logging"
	"github.com/mwiater/cardia/internal/patient"
)

const (
	maxBodyBytes         = 1 << 20 // 1 MiB
	readyMessage         = "Heart disease prediction API is ready"
	internalErrorMessage = "internal server error"
)

type errorResponse struct {
	Error  string               `json:"error"`
	Detail []patient.FieldError `json:"detail,omitempty"`
}

// Server exposes a Service over HTTP.
type Server struct {
	svc    *Service
	server *http.Server
}

// NewServer builds the HTTP server for svc using the listen address and
// timeouts in cfg.
func NewServer(cfg appconfig.ServerConfig, svc *Service) *Server {
	s := &Server{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /predict", s.handlePredict)

	chain := Chain(
		LoggerMiddleware,
		RecoveryMiddleware,
	)

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	logging.L().Info("inference service listening", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.L().Info("shutting down inference service")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": readyMessage})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	id := RequestID(r.Context())

	body, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "validation failed",
			Detail: []patient.FieldError{{Field: "body", Message: err.Error(), Type: "body_unreadable"}},
		})
		return
	}
	logging.LogPayload("predict request", body)

	rec, err := patient.Decode(body)
	if err != nil {
		var verr *patient.ValidationError
		if errors.As(err, &verr) {
			logging.L().Info("predict rejected", zap.String("request_id", id), zap.Error(err))
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Detail: verr.Fields})
			return
		}
		logging.L().Error("predict decode failed", zap.String("request_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: internalErrorMessage})
		return
	}

	res, err := s.svc.Predict(rec)
	if err != nil {
		logging.L().Error("predict failed", zap.String("request_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: internalErrorMessage})
		return
	}
	logging.LogPayload("predict response", res)
	writeJSON(w, http.StatusOK, res)
}

func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, errors.New("empty body")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
