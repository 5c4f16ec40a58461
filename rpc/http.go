package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"pollchain/core"
	"pollchain/crypto"
	"pollchain/observability/logging"
	"pollchain/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeForbidden      = -32003
	codeNotFound       = -32004
	codeConflict       = -32005
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig controls authentication, throttling and instrumentation.
type ServerConfig struct {
	// AuthTokenEnv names the environment variable holding the bearer token
	// required by mutating methods.
	AuthTokenEnv       string
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxBodyBytes       int64

	// TrustedProxies lists peer IPs whose X-Forwarded-For header is honoured.
	// Requests from any other peer are keyed on RemoteAddr.
	TrustedProxies []string
	Logger         *slog.Logger
	Metrics        *metrics.PollMetrics
}

type Server struct {
	node      *core.Node
	authToken string
	limiter   *sourceLimiter
	maxBody   int64
	trusted   map[string]struct{}
	logger    *slog.Logger
	metrics   *metrics.PollMetrics
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	envName := strings.TrimSpace(cfg.AuthTokenEnv)
	if envName == "" {
		envName = "POLLS_RPC_TOKEN"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = maxRequestBytes
	}
	trusted := make(map[string]struct{}, len(cfg.TrustedProxies))
	for _, proxy := range cfg.TrustedProxies {
		if trimmed := strings.TrimSpace(proxy); trimmed != "" {
			trusted[trimmed] = struct{}{}
		}
	}
	return &Server{
		node:      node,
		trusted:   trusted,
		authToken: strings.TrimSpace(os.Getenv(envName)),
		limiter:   newSourceLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		maxBody:   maxBody,
		logger:    logger.With(slog.String("component", "rpc")),
		metrics:   cfg.Metrics,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusRecorder remembers whether a handler reported an error.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type route struct {
	handler handlerFunc
	auth    bool
}

func (s *Server) routes() map[string]route {
	return map[string]route{
		"polls_create":          {handler: s.handlePollsCreate, auth: true},
		"polls_update":          {handler: s.handlePollsUpdate, auth: true},
		"polls_vote":            {handler: s.handlePollsVote, auth: true},
		"polls_emergencyCancel": {handler: s.handlePollsEmergencyCancel, auth: true},
		"polls_get":             {handler: s.handlePollsGet},
		"polls_list":            {handler: s.handlePollsList},
		"polls_voteOf":          {handler: s.handlePollsVoteOf},
		"polls_voters":          {handler: s.handlePollsVoters},
		"polls_winningOption":   {handler: s.handlePollsWinningOption},
		"chain_height":          {handler: s.handleChainHeight},
		"chain_events":          {handler: s.handleChainEvents},
		"ledger_balance":        {handler: s.handleLedgerBalance},
		"ledger_transfer":       {handler: s.handleLedgerTransfer, auth: true},
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	source := s.clientSource(r)
	if !s.limiter.allow(source) {
		s.metrics.RecordThrottle()
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxBody)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	rt, ok := s.routes()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if rt.auth {
		if authErr := s.requireAuth(r); authErr != nil {
			s.logger.Warn("rpc auth rejected",
				slog.String("request_id", requestID),
				slog.String("method", req.Method),
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rt.handler(recorder, r, req)
	var outcome error
	if recorder.status != http.StatusOK {
		outcome = fmt.Errorf("status %d", recorder.status)
	}
	s.metrics.ObserveRPC(req.Method, outcome, time.Since(start))
	s.logger.Debug("rpc request",
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("source", source),
		slog.Int("status", recorder.status),
		slog.Duration("duration", time.Since(start)))
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// clientSource keys rate limiting. X-Forwarded-For is only read when the
// direct peer is a trusted proxy; otherwise any client could pick its own key.
func (s *Server) clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if _, ok := s.trusted[host]; !ok {
		return host
	}
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return host
	}
	parts := strings.Split(forwarded, ",")
	if candidate := strings.TrimSpace(parts[0]); candidate != "" {
		return candidate
	}
	return host
}

func decodeBech32(addr string) ([20]byte, error) {
	var zero [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return zero, err
	}
	if decoded.Prefix() != crypto.AccountPrefix {
		return zero, fmt.Errorf("unexpected address prefix %q", decoded.Prefix())
	}
	return decoded.Raw(), nil
}

// decodeParams unmarshals the single parameter object of a request.
func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}
