package rpc

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"carbonbridge/native/bridge"
	"carbonbridge/native/exchange"
	"carbonbridge/native/rewards"
	"carbonbridge/native/token"
	"carbonbridge/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeConflict       = -32010
	codeTiming         = -32011
	codeResource       = -32012
)

// Server exposes the module engines over JSON-RPC 2.0. Privileged methods
// require the bearer token; reads and the public dispute entry points
// (challenge, settle) are open.
type Server struct {
	bridge    *bridge.Engine
	rewards   *rewards.Engine
	exchange  *exchange.Engine
	tokens    *token.Ledger
	authToken string
	log       *slog.Logger
}

// NewServer wires the engines into an RPC server. The auth token defaults
// to the CARBONBRIDGE_RPC_TOKEN environment variable.
func NewServer(bridgeEngine *bridge.Engine, rewardsEngine *rewards.Engine, exchangeEngine *exchange.Engine, tokens *token.Ledger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		bridge:    bridgeEngine,
		rewards:   rewardsEngine,
		exchange:  exchangeEngine,
		tokens:    tokens,
		authToken: strings.TrimSpace(os.Getenv("CARBONBRIDGE_RPC_TOKEN")),
		log:       log,
	}
}

// SetAuthToken overrides the bearer token required for privileged methods.
func (s *Server) SetAuthToken(token string) { s.authToken = strings.TrimSpace(token) }

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for the JSON-RPC endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, nil, codeParseError, "unable to read request body")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		s.writeError(w, req.ID, codeInvalidRequest, "invalid JSON-RPC request")
		return
	}
	if s.isPrivileged(req.Method) && !s.authorized(r) {
		s.writeError(w, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return
	}
	started := time.Now()
	result, rpcErr := s.dispatch(&req)
	outcome := "ok"
	if rpcErr != nil {
		outcome = "error"
	}
	observability.Pipeline().RequestDuration.WithLabelValues(req.Method, outcome).Observe(time.Since(started).Seconds())
	if rpcErr != nil {
		s.log.Warn("rpc request failed", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		s.writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: rpcErr})
		return
	}
	s.writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

func (s *Server) dispatch(req *rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "bridge_submitBatch":
		return s.handleSubmitBatch(req.Params)
	case "bridge_challenge":
		return s.handleChallenge(req.Params)
	case "bridge_resolveChallenge":
		return s.handleResolveChallenge(req.Params)
	case "bridge_settle":
		return s.handleSettle(req.Params)
	case "bridge_getBatch":
		return s.handleGetBatch(req.Params)
	case "rewards_claimable":
		return s.handleClaimable(req.Params)
	case "rewards_claim":
		return s.handleClaim(req.Params)
	case "rewards_fund":
		return s.handleFund(req.Params)
	case "token_balance":
		return s.handleBalance(req.Params)
	case "exchange_list":
		return s.handleExchangeList(req.Params)
	case "exchange_buy":
		return s.handleExchangeBuy(req.Params)
	case "exchange_cancel":
		return s.handleExchangeCancel(req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)}
	}
}

func (s *Server) isPrivileged(method string) bool {
	switch method {
	// Challenging is a public dispute mechanism and settlement is open to
	// anyone once the window has elapsed; the engines enforce their own
	// timing and role rules.
	case "bridge_getBatch", "bridge_challenge", "bridge_settle",
		"rewards_claimable", "token_balance":
		return false
	default:
		return true
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.authToken)) == 1
}

func (s *Server) writeResponse(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("rpc response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	s.writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &rpcError{Code: code, Message: message}})
}

// errorToRPC maps engine sentinel errors onto the JSON-RPC error taxonomy:
// idempotency and state conflicts, timing gates, resource exhaustion,
// authorization and validation failures.
func errorToRPC(err error) *rpcError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bridge.ErrUnauthorized),
		errors.Is(err, rewards.ErrUnauthorized),
		errors.Is(err, exchange.ErrUnauthorized),
		errors.Is(err, token.ErrUnauthorized):
		return &rpcError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, bridge.ErrAlreadySubmitted),
		errors.Is(err, bridge.ErrAlreadySettled),
		errors.Is(err, bridge.ErrBatchRejected),
		errors.Is(err, bridge.ErrChallengeExists),
		errors.Is(err, bridge.ErrChallengeResolved),
		errors.Is(err, bridge.ErrChallengeUnresolved),
		errors.Is(err, bridge.ErrChallengeUpheld),
		errors.Is(err, exchange.ErrListingClosed):
		return &rpcError{Code: codeConflict, Message: err.Error()}
	case errors.Is(err, bridge.ErrNotYetSettleable),
		errors.Is(err, bridge.ErrChallengeWindowClosed):
		return &rpcError{Code: codeTiming, Message: err.Error()}
	case errors.Is(err, rewards.ErrInsufficientPoolFunds),
		errors.Is(err, exchange.ErrInsufficientLiquidity),
		errors.Is(err, exchange.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientBalance):
		return &rpcError{Code: codeResource, Message: err.Error()}
	case errors.Is(err, bridge.ErrBatchNotFound),
		errors.Is(err, bridge.ErrChallengeNotFound),
		errors.Is(err, bridge.ErrEmptyBatch),
		errors.Is(err, bridge.ErrInvalidProof),
		errors.Is(err, bridge.ErrInsufficientParticipants),
		errors.Is(err, bridge.ErrFactorNotConfigured),
		errors.Is(err, rewards.ErrNothingToClaim),
		errors.Is(err, rewards.ErrInvalidAmount),
		errors.Is(err, exchange.ErrListingNotFound),
		errors.Is(err, exchange.ErrInvalidAmount),
		errors.Is(err, exchange.ErrInvalidPrice),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrUnknownSymbol):
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: codeServerError, Message: err.Error()}
	}
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseHash(value string) ([32]byte, error) {
	var hash [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return hash, fmt.Errorf("invalid hash %q", value)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("hash must be 32 bytes, got %d", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}
