package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deedchain/core/state"
	"deedchain/native/installment"
	"deedchain/native/marketplace"
	"deedchain/native/presale"
	"deedchain/native/reward"
	"deedchain/native/rewardpool"
	"deedchain/observability"
)

const maxRequestBody = 1 << 20

// Server exposes the ledger engines over HTTP. Callers identify themselves
// with a hex address in the request payload; role enforcement happens inside
// the engines, the transport only translates.
type Server struct {
	state    *state.Manager
	reward   *reward.Ledger
	pool     *rewardpool.Pool
	registry *installment.Registry
	market   *marketplace.Engine
	presale  *presale.Engine
	logger   *slog.Logger
}

// NewServer constructs an HTTP server over the wired engines.
func NewServer(st *state.Manager, ledger *reward.Ledger, pool *rewardpool.Pool, registry *installment.Registry, market *marketplace.Engine, sale *presale.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		state:    st,
		reward:   ledger,
		pool:     pool,
		registry: registry,
		market:   market,
		presale:  sale,
		logger:   logger,
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Route("/reward", func(sr chi.Router) {
			sr.Post("/mint", s.handleRewardMint)
			sr.Post("/burn", s.handleRewardBurn)
			sr.Post("/transfer", s.handleRewardTransfer)
			sr.Get("/supply", s.handleRewardSupply)
			sr.Get("/balance/{addr}", s.handleRewardBalance)
		})
		v1.Route("/pool", func(sr chi.Router) {
			sr.Get("/available", s.handlePoolAvailable)
			sr.Get("/reserved", s.handlePoolReserved)
		})
		v1.Route("/stable", func(sr chi.Router) {
			sr.Post("/mint", s.handleStableMint)
			sr.Post("/approve", s.handleStableApprove)
			sr.Post("/transfer", s.handleStableTransfer)
			sr.Get("/balance/{addr}", s.handleStableBalance)
			sr.Get("/allowance/{owner}/{spender}", s.handleStableAllowance)
		})
		v1.Route("/contracts", func(sr chi.Router) {
			sr.Post("/", s.handleContractCreate)
			sr.Get("/balance/{addr}", s.handleUnitBalance)
			sr.Get("/{id}", s.handleContractGet)
			sr.Post("/{id}/close", s.handleContractClose)
			sr.Get("/{id}/progress", s.handleContractProgress)
			sr.Get("/{id}/price", s.handleContractPrice)
			sr.Get("/{id}/units/{index}/owner", s.handleUnitOwner)
			sr.Get("/{id}/metadata", s.handleContractMetadata)
		})
		v1.Route("/marketplace", func(sr chi.Router) {
			sr.Post("/buy", s.handleMarketplaceBuy)
			sr.Post("/interest", s.handleInterestUpdate)
			sr.Post("/withdraw", s.handleLiquidityWithdraw)
			sr.Get("/interest", s.handleInterestGet)
		})
		v1.Route("/presale", func(sr chi.Router) {
			sr.Post("/open", s.handlePresaleOpen)
			sr.Post("/buy", s.handlePresaleBuy)
			sr.Post("/close", s.handlePresaleClose)
			sr.Post("/claim", s.handlePresaleClaim)
			sr.Post("/refund", s.handlePresaleRefund)
			sr.Get("/price", s.handlePresalePrice)
			sr.Get("/status", s.handlePresaleStatus)
		})
	})

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)
		module := routeModule(r.URL.Path)
		observability.ModuleMetrics().Observe(module, r.Method, recorder.status, duration)
		s.logger.Info("request",
			"requestId", requestID,
			"module", module,
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"durationMs", duration.Milliseconds(),
		)
	})
}

func routeModule(path string) string {
	trimmed := strings.TrimPrefix(path, "/v1/")
	if trimmed == path {
		return "root"
	}
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON payload: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeEngineError maps engine sentinel errors onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case isUnauthorized(err):
		status = http.StatusForbidden
	case isNotFound(err):
		status = http.StatusNotFound
	case isConflict(err):
		status = http.StatusConflict
	case isBadRequest(err):
		status = http.StatusUnprocessableEntity
	}
	s.writeError(w, status, err)
}

func isUnauthorized(err error) bool {
	return errors.Is(err, reward.ErrUnauthorized) ||
		errors.Is(err, rewardpool.ErrUnauthorized) ||
		errors.Is(err, installment.ErrUnauthorized) ||
		errors.Is(err, marketplace.ErrUnauthorized) ||
		errors.Is(err, presale.ErrUnauthorized)
}

func isNotFound(err error) bool {
	return errors.Is(err, installment.ErrContractNotFound) ||
		errors.Is(err, installment.ErrUnitNotFound) ||
		errors.Is(err, presale.ErrNotConfigured)
}

func isConflict(err error) bool {
	return errors.Is(err, installment.ErrDuplicateContract) ||
		errors.Is(err, presale.ErrAlreadyConfigured) ||
		errors.Is(err, presale.ErrAlreadyClosed) ||
		errors.Is(err, presale.ErrPresaleClosed) ||
		errors.Is(err, presale.ErrPresaleNotClosed)
}

func isBadRequest(err error) bool {
	return errors.Is(err, reward.ErrInvalidAmount) ||
		errors.Is(err, reward.ErrCapExceeded) ||
		errors.Is(err, reward.ErrInsufficientBalance) ||
		errors.Is(err, reward.ErrInsufficientPoolMintedSupply) ||
		errors.Is(err, rewardpool.ErrInsufficientLiquidity) ||
		errors.Is(err, rewardpool.ErrNotEnoughReserved) ||
		errors.Is(err, installment.ErrBadQuota) ||
		errors.Is(err, installment.ErrBadUnitsAmount) ||
		errors.Is(err, installment.ErrNoSellers) ||
		errors.Is(err, installment.ErrNoUnitsAvailable) ||
		errors.Is(err, installment.ErrNotUnitOwner) ||
		errors.Is(err, installment.ErrSelfTransfer) ||
		errors.Is(err, installment.ErrOperationNotAllowed) ||
		errors.Is(err, marketplace.ErrBadInterestRate) ||
		errors.Is(err, marketplace.ErrInsufficientAllowance) ||
		errors.Is(err, marketplace.ErrUnitHasNoOwner) ||
		errors.Is(err, marketplace.ErrCallerAlreadyOwnsUnit) ||
		errors.Is(err, presale.ErrInvalidAmount) ||
		errors.Is(err, presale.ErrInvalidParams) ||
		errors.Is(err, presale.ErrCapExceeded) ||
		errors.Is(err, presale.ErrNotEnoughFunds) ||
		errors.Is(err, presale.ErrPresaleFailed) ||
		errors.Is(err, presale.ErrPresaleDidNotFail) ||
		errors.Is(err, presale.ErrNothingToClaim) ||
		errors.Is(err, presale.ErrNothingToRefund) ||
		errors.Is(err, state.ErrInvalidAmount) ||
		errors.Is(err, state.ErrInsufficientBalance) ||
		errors.Is(err, state.ErrInsufficientAllowance)
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
