package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"h2hServer/auth"
	"h2hServer/config"
	"h2hServer/crypto"
	"h2hServer/leaderboard"
	"h2hServer/market"
	"h2hServer/monitoring"
	"h2hServer/ws"

	"go.uber.org/zap"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server exposes the market over HTTP.
type Server struct {
	program  *market.Program
	verifier *auth.Verifier
	hub      *ws.Hub
	metrics  *monitoring.Metrics
	board    *leaderboard.Board
	health   map[string]HealthCheck
	log      *zap.Logger
}

type Deps struct {
	Program  *market.Program
	Verifier *auth.Verifier
	Hub      *ws.Hub
	Metrics  *monitoring.Metrics
	Board    *leaderboard.Board
	Health   map[string]HealthCheck
	Log      *zap.Logger
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Server{
		program:  d.Program,
		verifier: d.Verifier,
		hub:      d.Hub,
		metrics:  d.Metrics,
		board:    d.Board,
		health:   d.Health,
		log:      d.Log,
	}
}

/* =========================
   ROUTES
========================= */

// Routes returns the handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		if s.metrics != nil {
			h = s.metrics.Middleware(pattern, h)
		}
		mux.HandleFunc(pattern, corsMiddleware(h))
	}

	// Initialization
	handle("POST /api/config/init", s.HandleInitializeConfig)
	handle("POST /api/prices/init", s.HandleInitializePrices)
	handle("POST /api/games/init", s.HandleInitializeGames)
	handle("POST /api/vault/init", s.HandleInitializeVault)

	// Operations
	handle("POST /api/prices", s.HandleAddPrice)
	handle("POST /api/games", s.HandleCreateGame)
	handle("POST /api/games/{index}/join", s.HandleJoinGame)
	handle("POST /api/games/{index}/withdraw", s.HandleWithdrawFromGame)
	handle("POST /api/games/{index}/claim", s.HandleClaimWinnings)

	// Queries
	handle("GET /api/config", s.HandleGetConfig)
	handle("GET /api/prices", s.HandleGetPrices)
	handle("GET /api/prices/latest", s.HandleGetLatestPrice)
	handle("GET /api/games", s.HandleGetGames)
	handle("GET /api/games/{index}", s.HandleGetGame)
	handle("GET /api/vault", s.HandleGetVault)
	handle("GET /api/balances/{address}", s.HandleGetBalance)
	handle("GET /api/leaderboard", s.HandleGetLeaderboard)
	handle("GET /api/health", s.HandleHealthCheck)

	mux.HandleFunc("OPTIONS /", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {}))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.HandleWS)
	}
	return mux
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = config.AllowOrigin
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}

/* =========================
   RESPONSES
========================= */

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// sendFailure maps err to a status and writes it. Unexpected errors are
// logged and hidden from the client.
func (s *Server) sendFailure(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("❌ Request failed", zap.String("op", op), zap.Error(err))
		sendError(w, status, "Internal server error")
		return
	}
	sendJSON(w, status, ErrorResponse{Success: false, Error: err.Error(), Code: code})
}

var authErrors = []error{
	auth.ErrMissingCredentials,
	auth.ErrExpired,
	auth.ErrSignerMismatch,
	auth.ErrReplayed,
	crypto.ErrBadSignature,
}

var statusByCode = map[string]int{
	"InvalidConfig":          http.StatusBadRequest,
	"InvalidDenomination":    http.StatusBadRequest,
	"InvalidPrice":           http.StatusBadRequest,
	"ArithmeticOverflow":     http.StatusBadRequest,
	"Unauthorized":           http.StatusForbidden,
	"UnauthorizedWithdrawal": http.StatusForbidden,
	"SignerNotWinner":        http.StatusForbidden,
	"CannotJoinOwnGame":      http.StatusForbidden,
	"GameNotFound":           http.StatusNotFound,
	"NotInitialized":         http.StatusNotFound,
	"AlreadyInitialized":     http.StatusConflict,
	"GameAlreadyClosed":      http.StatusConflict,
	"GameAlreadyJoined":      http.StatusConflict,
	"WithdrawalNotAllowed":   http.StatusConflict,
	"GameNotStarted":         http.StatusConflict,
	"GameNotFinished":        http.StatusUnprocessableEntity,
	"PriceMovedTooMuch":      http.StatusUnprocessableEntity,
	"InsufficientFunds":      http.StatusUnprocessableEntity,
}

func classify(err error) (int, string) {
	for _, e := range authErrors {
		if errors.Is(err, e) {
			return http.StatusUnauthorized, "Unauthenticated"
		}
	}
	var bad badRequest
	if errors.As(err, &bad) {
		return http.StatusBadRequest, "BadRequest"
	}
	code := market.Code(err)
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, ""
}

// badRequest marks input that failed to parse.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }
