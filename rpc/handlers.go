package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"carbonbridge/native/bridge"
	"carbonbridge/native/token"
	"carbonbridge/observability"
)

type entryParam struct {
	DeviceID        string `json:"deviceId"`
	Operator        string `json:"operator"`
	EnergyKWh       uint64 `json:"energyKwh"`
	Timestamp       int64  `json:"timestamp"`
	Locale          string `json:"locale,omitempty"`
	VerificationTag string `json:"verificationTag,omitempty"`
}

type proofParam struct {
	RoundID          uint64 `json:"roundId"`
	ParticipantCount uint32 `json:"participantCount"`
	ResultHash       string `json:"resultHash"`
	Signature        string `json:"signature"`
}

type submitBatchParams struct {
	Caller  string       `json:"caller"`
	Entries []entryParam `json:"entries"`
	Proof   proofParam   `json:"proof"`
}

type batchResult struct {
	BatchHash   string `json:"batchHash"`
	EntryCount  uint32 `json:"entryCount"`
	SubmittedAt int64  `json:"submittedAt"`
	SettleAfter int64  `json:"settleAfter"`
	Status      string `json:"status"`
	Minted      string `json:"creditsMinted,omitempty"`
}

func decodeParams(raw json.RawMessage, out interface{}) *rpcError {
	if len(raw) == 0 {
		return &rpcError{Code: codeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) handleSubmitBatch(raw json.RawMessage) (interface{}, *rpcError) {
	var params submitBatchParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	entries := make([]bridge.EnergyEntry, 0, len(params.Entries))
	for i, raw := range params.Entries {
		entry, err := decodeEntry(raw)
		if err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("entry %d: %v", i, err)}
		}
		entries = append(entries, entry)
	}
	resultHash, err := parseHash(params.Proof.ResultHash)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	signature, err := hex.DecodeString(params.Proof.Signature)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid proof signature encoding"}
	}
	proof := bridge.ConsensusProof{
		RoundID:          params.Proof.RoundID,
		ParticipantCount: params.Proof.ParticipantCount,
		ResultHash:       resultHash,
		Signature:        signature,
	}
	record, err := s.bridge.SubmitBatch(caller, entries, proof)
	if err != nil {
		return nil, errorToRPC(err)
	}
	observability.Pipeline().BatchesSubmitted.Inc()
	return recordToResult(record, nil), nil
}

func decodeEntry(p entryParam) (bridge.EnergyEntry, error) {
	var entry bridge.EnergyEntry
	deviceID, err := parseHash(p.DeviceID)
	if err != nil {
		return entry, err
	}
	operator := [20]byte{}
	if p.Operator != "" {
		operator, err = parseAddress(p.Operator)
		if err != nil {
			return entry, err
		}
	}
	return bridge.EnergyEntry{
		DeviceID:        deviceID,
		Operator:        operator,
		EnergyKWh:       p.EnergyKWh,
		Timestamp:       p.Timestamp,
		Locale:          p.Locale,
		VerificationTag: p.VerificationTag,
	}, nil
}

func recordToResult(record *bridge.BatchRecord, ch *bridge.Challenge) batchResult {
	result := batchResult{
		BatchHash:   hex.EncodeToString(record.Hash[:]),
		EntryCount:  record.EntryCount,
		SubmittedAt: record.SubmittedAt,
		SettleAfter: record.SettleAfter,
	}
	switch {
	case record.Rejected:
		result.Status = bridge.StatusRejected.String()
	case record.Settled:
		result.Status = bridge.StatusSettled.String()
	case ch != nil && !ch.Resolved:
		result.Status = bridge.StatusChallenged.String()
	default:
		result.Status = bridge.StatusPending.String()
	}
	if record.MintedTotal != nil && record.MintedTotal.Sign() > 0 {
		result.Minted = record.MintedTotal.String()
	}
	return result
}

type challengeParams struct {
	Caller    string `json:"caller"`
	BatchHash string `json:"batchHash"`
	Reason    string `json:"reason"`
}

func (s *Server) handleChallenge(raw json.RawMessage) (interface{}, *rpcError) {
	var params challengeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	hash, err := parseHash(params.BatchHash)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	if err := s.bridge.Challenge(caller, hash, params.Reason); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Pipeline().BatchesChallenged.Inc()
	return map[string]bool{"challenged": true}, nil
}

type resolveParams struct {
	Caller    string `json:"caller"`
	BatchHash string `json:"batchHash"`
	Upheld    bool   `json:"upheld"`
}

func (s *Server) handleResolveChallenge(raw json.RawMessage) (interface{}, *rpcError) {
	var params resolveParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	hash, err := parseHash(params.BatchHash)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	if err := s.bridge.ResolveChallenge(caller, hash, params.Upheld); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"resolved": true, "upheld": params.Upheld}, nil
}

type settleParams struct {
	BatchHash string `json:"batchHash"`
}

func (s *Server) handleSettle(raw json.RawMessage) (interface{}, *rpcError) {
	var params settleParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := parseHash(params.BatchHash)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	if err := s.bridge.Settle(hash); err != nil {
		return nil, errorToRPC(err)
	}
	record, ch, ok, err := s.bridge.GetBatch(hash)
	if err != nil {
		return nil, errorToRPC(err)
	}
	if !ok {
		return nil, errorToRPC(bridge.ErrBatchNotFound)
	}
	metrics := observability.Pipeline()
	metrics.BatchesSettled.Inc()
	if record.MintedTotal != nil {
		minted, _ := new(big.Float).SetInt(record.MintedTotal).Float64()
		metrics.CreditsMinted.Add(minted)
	}
	return recordToResult(record, ch), nil
}

func (s *Server) handleGetBatch(raw json.RawMessage) (interface{}, *rpcError) {
	var params settleParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := parseHash(params.BatchHash)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	record, ch, ok, err := s.bridge.GetBatch(hash)
	if err != nil {
		return nil, errorToRPC(err)
	}
	if !ok {
		return nil, errorToRPC(bridge.ErrBatchNotFound)
	}
	return recordToResult(record, ch), nil
}

type operatorParams struct {
	Operator string `json:"operator"`
}

func (s *Server) handleClaimable(raw json.RawMessage) (interface{}, *rpcError) {
	var params operatorParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	operator, err := parseAddress(params.Operator)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	amount, err := s.rewards.Claimable(operator)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"operator": params.Operator, "claimable": amount.String()}, nil
}

func (s *Server) handleClaim(raw json.RawMessage) (interface{}, *rpcError) {
	var params operatorParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	operator, err := parseAddress(params.Operator)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	amount, err := s.rewards.Claim(operator)
	if err != nil {
		return nil, errorToRPC(err)
	}
	observability.Pipeline().ClaimsPaid.Inc()
	return map[string]string{"operator": params.Operator, "amount": amount.String()}, nil
}

type fundParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

func (s *Server) handleFund(raw json.RawMessage) (interface{}, *rpcError) {
	var params fundParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	from, err := parseAddress(params.From)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	amount, ok := new(big.Int).SetString(params.Amount, 10)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid amount"}
	}
	if err := s.rewards.Fund(from, amount); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"funded": true}, nil
}

type balanceParams struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

func (s *Server) handleBalance(raw json.RawMessage) (interface{}, *rpcError) {
	var params balanceParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	symbol := params.Symbol
	if symbol == "" {
		symbol = token.SymbolCredit
	}
	balance, err := s.tokens.BalanceOf(addr, symbol)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"address": params.Address, "symbol": symbol, "balance": balance.String()}, nil
}

type listParams struct {
	Seller string `json:"seller"`
	Amount string `json:"amount"`
	Price  string `json:"price"`
}

func (s *Server) handleExchangeList(raw json.RawMessage) (interface{}, *rpcError) {
	var params listParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	amount, ok := new(big.Int).SetString(params.Amount, 10)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid amount"}
	}
	price, ok := new(big.Int).SetString(params.Price, 10)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid price"}
	}
	listing, err := s.exchange.List(seller, amount, price)
	if err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]string{"listingId": listing.ID}, nil
}

type buyParams struct {
	Buyer     string `json:"buyer"`
	ListingID string `json:"listingId"`
	Amount    string `json:"amount"`
}

func (s *Server) handleExchangeBuy(raw json.RawMessage) (interface{}, *rpcError) {
	var params buyParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	amount, ok := new(big.Int).SetString(params.Amount, 10)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid amount"}
	}
	if err := s.exchange.Buy(buyer, params.ListingID, amount); err != nil {
		return nil, errorToRPC(err)
	}
	observability.Pipeline().ExchangeFills.Inc()
	return map[string]bool{"filled": true}, nil
}

type cancelParams struct {
	Caller    string `json:"caller"`
	ListingID string `json:"listingId"`
}

func (s *Server) handleExchangeCancel(raw json.RawMessage) (interface{}, *rpcError) {
	var params cancelParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	}
	if err := s.exchange.Cancel(caller, params.ListingID); err != nil {
		return nil, errorToRPC(err)
	}
	return map[string]bool{"cancelled": true}, nil
}
