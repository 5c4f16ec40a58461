package rpc

import (
	"net/http"

	"pollchain/core/types"
	"pollchain/native/polls"
)

type chainEventsParams struct {
	Limit *int `json:"limit,omitempty"`
}

type ledgerBalanceParams struct {
	Address  string `json:"address"`
	Currency string `json:"currency"`
}

type ledgerTransferParams struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type chainHeightResponse struct {
	Height uint64 `json:"height"`
}

type chainEventsResponse struct {
	Events []*types.Event `json:"events"`
}

type BalanceResponse struct {
	Address  string `json:"address"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

func (s *Server) handleChainHeight(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, chainHeightResponse{Height: s.node.Height()})
}

func (s *Server) handleChainEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	limit := 100
	if len(req.Params) > 0 {
		var params chainEventsParams
		if !decodeParams(w, req, &params) {
			return
		}
		if params.Limit != nil {
			if *params.Limit <= 0 {
				writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit must be positive", nil)
				return
			}
			limit = *params.Limit
		}
	}
	writeResult(w, req.ID, chainEventsResponse{Events: s.node.Events(limit)})
}

func (s *Server) handleLedgerBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ledgerBalanceParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	currency, err := polls.ParseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	balance, err := s.node.Balance(addr, currency)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceResponse{
		Address:  params.Address,
		Currency: currency.String(),
		Balance:  balance.String(),
	})
}

func (s *Server) handleLedgerTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params ledgerTransferParams
	if !decodeParams(w, req, &params) {
		return
	}
	from, ok := s.requireCaller(w, req, params.From)
	if !ok {
		return
	}
	to, err := decodeBech32(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to address", err.Error())
		return
	}
	currency, err := polls.ParseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	amount, err := parseNonNegativeAmount(params.Amount)
	if err != nil || amount.Sign() == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "amount must be positive", nil)
		return
	}
	if err := s.node.Transfer(from, to, currency, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pollsAckResponse{OK: true})
}
