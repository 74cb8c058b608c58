package gateway

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carbonbridge/native/bridge"
	"carbonbridge/native/exchange"
	"carbonbridge/native/rewards"
	"carbonbridge/native/token"
	"carbonbridge/state"
	"carbonbridge/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type gatewayHarness struct {
	handler   http.Handler
	bridge    *bridge.Engine
	exchange  *exchange.Engine
	submitter [20]byte
	seller    [20]byte
	clock     int64
}

func newGatewayHarness(t *testing.T) *gatewayHarness {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	tokens := token.NewLedger(manager)

	h := &gatewayHarness{
		submitter: newTestAddress(0x11),
		seller:    newTestAddress(0x21),
		clock:     1_700_000_000,
	}
	minter := newTestAddress(0xF0)
	module := newTestAddress(0xE0)
	treasury := newTestAddress(0xE1)

	for _, grant := range []struct {
		role string
		addr [20]byte
	}{
		{bridge.RoleSubmitter, h.submitter},
		{token.RoleMinter, minter},
	} {
		require.NoError(t, manager.SetRole(grant.role, grant.addr))
	}

	rewardsEngine := rewards.NewEngine()
	rewardsEngine.SetStore(manager)
	rewardsEngine.SetPool(rewards.NewTokenPool(tokens, newTestAddress(0xE2), ""))
	rewardsEngine.SetNowFunc(func() int64 { return h.clock })

	h.bridge = bridge.NewEngine()
	h.bridge.SetStore(manager)
	h.bridge.SetNowFunc(func() int64 { return h.clock })
	require.NoError(t, h.bridge.SetParams(bridge.Params{
		ChallengeWindow: 3600,
		MinParticipants: 1,
		EmissionFactor:  big.NewInt(512_000_000),
		Mode:            bridge.ModeDelayed,
	}))

	h.exchange = exchange.NewEngine(module, treasury)
	h.exchange.SetStore(manager)
	h.exchange.SetTokens(tokens)
	require.NoError(t, tokens.Mint(minter, h.seller, token.SymbolCredit, big.NewInt(1000)))

	h.handler = New(Config{
		Bridge:   h.bridge,
		Rewards:  rewardsEngine,
		Exchange: h.exchange,
		Tokens:   tokens,
	})
	return h
}

func (h *gatewayHarness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *gatewayHarness) submitBatch(t *testing.T) [32]byte {
	t.Helper()
	entries := []bridge.EnergyEntry{{
		DeviceID:  [32]byte{0x01},
		Operator:  newTestAddress(0x31),
		EnergyKWh: 500,
		Timestamp: 1_699_999_000,
	}}
	hash, err := bridge.HashEntries(entries)
	require.NoError(t, err)
	_, err = h.bridge.SubmitBatch(h.submitter, entries, bridge.ConsensusProof{
		RoundID:          1,
		ParticipantCount: 1,
		ResultHash:       bridge.ProofResultHash(1, hash),
		Signature:        []byte{0x01},
	})
	require.NoError(t, err)
	return hash
}

func TestHealthz(t *testing.T) {
	h := newGatewayHarness(t)
	rec := h.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newGatewayHarness(t)
	rec := h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBatchRoutes(t *testing.T) {
	h := newGatewayHarness(t)
	hash := h.submitBatch(t)

	rec := h.get(t, "/v1/batches/"+hex.EncodeToString(hash[:]))
	require.Equal(t, http.StatusOK, rec.Code)
	var view batchView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, hex.EncodeToString(hash[:]), view.BatchHash)
	require.Equal(t, "pending", view.Status)
	require.Equal(t, uint32(1), view.EntryCount)

	rec = h.get(t, "/v1/batches/"+hex.EncodeToString(hash[:])+"/entries")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []entryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, uint64(500), entries[0].EnergyKWh)

	missing := make([]byte, 32)
	rec = h.get(t, "/v1/batches/"+hex.EncodeToString(missing))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.get(t, "/v1/batches/nothex")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimableRoute(t *testing.T) {
	h := newGatewayHarness(t)
	operator := newTestAddress(0x31)

	rec := h.get(t, "/v1/rewards/"+hex.EncodeToString(operator[:])+"/claimable")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "0", payload["claimable"])

	rec = h.get(t, "/v1/rewards/short/claimable")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalanceRoute(t *testing.T) {
	h := newGatewayHarness(t)
	rec := h.get(t, "/v1/balances/"+hex.EncodeToString(h.seller[:]))
	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, token.SymbolCredit, payload["symbol"])
	require.Equal(t, "1000", payload["balance"])

	rec = h.get(t, "/v1/balances/"+hex.EncodeToString(h.seller[:])+"?symbol=DOGE")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingsRoutes(t *testing.T) {
	h := newGatewayHarness(t)
	listing, err := h.exchange.List(h.seller, big.NewInt(100), big.NewInt(2))
	require.NoError(t, err)

	rec := h.get(t, "/v1/listings")
	require.Equal(t, http.StatusOK, rec.Code)
	var listings []listingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 1)
	require.Equal(t, listing.ID, listings[0].ID)
	require.Equal(t, "100", listings[0].Remaining)

	rec = h.get(t, "/v1/listings/"+listing.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.get(t, "/v1/listings/unknown-id")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client gets its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "192.0.2.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterSweepsIdleVisitorsOnly(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	limiter := &RateLimiter{
		limit:    RateLimit{RequestsPerMinute: 60, Burst: 1},
		visitors: make(map[string]*rateEntry),
		nowFn:    func() time.Time { return current },
	}

	limiter.obtainLimiter("active")
	limiter.obtainLimiter("idle")

	// Regular requests keep pushing the active client's window forward, so a
	// sweep long after the bucket was created must not hand it a fresh burst.
	for i := 0; i < 3; i++ {
		current = current.Add(4 * time.Minute)
		limiter.obtainLimiter("active")
	}
	limiter.sweepIdle()

	limiter.mu.Lock()
	_, activeKept := limiter.visitors["active"]
	_, idleKept := limiter.visitors["idle"]
	limiter.mu.Unlock()
	require.True(t, activeKept, "active visitor must keep its bucket")
	require.False(t, idleKept, "idle visitor must be swept")

	current = current.Add(visitorIdleExpiry + time.Minute)
	limiter.sweepIdle()
	limiter.mu.Lock()
	remaining := len(limiter.visitors)
	limiter.mu.Unlock()
	require.Zero(t, remaining, "visitors idle past the expiry must be swept")
}
