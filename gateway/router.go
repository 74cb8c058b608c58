package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carbonbridge/native/bridge"
	"carbonbridge/native/exchange"
	"carbonbridge/native/rewards"
	"carbonbridge/native/token"
)

// Config carries the gateway collaborators. The gateway exposes the
// read-only REST surface; all writes go through the JSON-RPC server.
type Config struct {
	Bridge      *bridge.Engine
	Rewards     *rewards.Engine
	Exchange    *exchange.Engine
	Tokens      *token.Ledger
	RateLimiter *RateLimiter
	Logger      *slog.Logger
}

// New assembles the chi router for the public read surface.
func New(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	g := &handlers{
		bridge:   cfg.Bridge,
		rewards:  cfg.Rewards,
		exchange: cfg.Exchange,
		tokens:   cfg.Tokens,
	}

	r := chi.NewRouter()
	r.Use(AccessLog(log))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(sr chi.Router) {
		sr.Get("/batches/{hash}", g.getBatch)
		sr.Get("/batches/{hash}/entries", g.getEntries)
		sr.Get("/rewards/{operator}/claimable", g.getClaimable)
		sr.Get("/balances/{address}", g.getBalance)
		sr.Get("/listings", g.getListings)
		sr.Get("/listings/{id}", g.getListing)
	})

	return r
}

type handlers struct {
	bridge   *bridge.Engine
	rewards  *rewards.Engine
	exchange *exchange.Engine
	tokens   *token.Ledger
}

type batchView struct {
	BatchHash   string `json:"batchHash"`
	EntryCount  uint32 `json:"entryCount"`
	SubmittedAt int64  `json:"submittedAt"`
	SettleAfter int64  `json:"settleAfter"`
	Status      string `json:"status"`
	Minted      string `json:"creditsMinted,omitempty"`
}

type entryView struct {
	DeviceID        string `json:"deviceId"`
	Operator        string `json:"operator"`
	EnergyKWh       uint64 `json:"energyKwh"`
	Timestamp       int64  `json:"timestamp"`
	Locale          string `json:"locale,omitempty"`
	VerificationTag string `json:"verificationTag,omitempty"`
}

type listingView struct {
	ID        string `json:"id"`
	Seller    string `json:"seller"`
	Remaining string `json:"remaining"`
	Price     string `json:"price"`
	CreatedAt int64  `json:"createdAt"`
	Closed    bool   `json:"closed"`
}

func (g *handlers) getBatch(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	record, ch, found, err := g.bridge.GetBatch(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, bridge.ErrBatchNotFound)
		return
	}
	view := batchView{
		BatchHash:   hex.EncodeToString(record.Hash[:]),
		EntryCount:  record.EntryCount,
		SubmittedAt: record.SubmittedAt,
		SettleAfter: record.SettleAfter,
	}
	switch {
	case record.Rejected:
		view.Status = bridge.StatusRejected.String()
	case record.Settled:
		view.Status = bridge.StatusSettled.String()
	case ch != nil && !ch.Resolved:
		view.Status = bridge.StatusChallenged.String()
	default:
		view.Status = bridge.StatusPending.String()
	}
	if record.MintedTotal != nil && record.MintedTotal.Sign() > 0 {
		view.Minted = record.MintedTotal.String()
	}
	writeJSON(w, view)
}

func (g *handlers) getEntries(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHashParam(w, r, "hash")
	if !ok {
		return
	}
	entries, found, err := g.bridge.Entries(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, bridge.ErrBatchNotFound)
		return
	}
	views := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, entryView{
			DeviceID:        hex.EncodeToString(entry.DeviceID[:]),
			Operator:        hex.EncodeToString(entry.Operator[:]),
			EnergyKWh:       entry.EnergyKWh,
			Timestamp:       entry.Timestamp,
			Locale:          entry.Locale,
			VerificationTag: entry.VerificationTag,
		})
	}
	writeJSON(w, views)
}

func (g *handlers) getClaimable(w http.ResponseWriter, r *http.Request) {
	operator, ok := parseAddressParam(w, r, "operator")
	if !ok {
		return
	}
	amount, err := g.rewards.Claimable(operator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]string{
		"operator":  chi.URLParam(r, "operator"),
		"claimable": amount.String(),
	})
}

func (g *handlers) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, r, "address")
	if !ok {
		return
	}
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = token.SymbolCredit
	}
	balance, err := g.tokens.BalanceOf(addr, symbol)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, token.ErrUnknownSymbol) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, map[string]string{
		"address": chi.URLParam(r, "address"),
		"symbol":  symbol,
		"balance": balance.String(),
	})
}

func (g *handlers) getListings(w http.ResponseWriter, r *http.Request) {
	listings, err := g.exchange.Listings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]listingView, 0, len(listings))
	for _, listing := range listings {
		if listing.Closed && r.URL.Query().Get("includeClosed") != "true" {
			continue
		}
		views = append(views, toListingView(listing))
	}
	writeJSON(w, views)
}

func (g *handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	listing, found, err := g.exchange.Listing(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, exchange.ErrListingNotFound)
		return
	}
	writeJSON(w, toListingView(listing))
}

func toListingView(l *exchange.Listing) listingView {
	remaining := l.Remaining
	if remaining == nil {
		remaining = big.NewInt(0)
	}
	price := l.Price
	if price == nil {
		price = big.NewInt(0)
	}
	return listingView{
		ID:        l.ID,
		Seller:    hex.EncodeToString(l.Seller[:]),
		Remaining: remaining.String(),
		Price:     price.String(),
		CreatedAt: l.CreatedAt,
		Closed:    l.Closed,
	}
}

func parseHashParam(w http.ResponseWriter, r *http.Request, name string) ([32]byte, bool) {
	var hash [32]byte
	raw := strings.TrimPrefix(chi.URLParam(r, name), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		writeError(w, http.StatusBadRequest, errors.New("gateway: malformed batch hash"))
		return hash, false
	}
	copy(hash[:], decoded)
	return hash, true
}

func parseAddressParam(w http.ResponseWriter, r *http.Request, name string) ([20]byte, bool) {
	var addr [20]byte
	raw := strings.TrimPrefix(chi.URLParam(r, name), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 20 {
		writeError(w, http.StatusBadRequest, errors.New("gateway: malformed address"))
		return addr, false
	}
	copy(addr[:], decoded)
	return addr, true
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
