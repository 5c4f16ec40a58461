package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"pollchain/crypto"
	"pollchain/native/polls"
)

type pollsCreateParams struct {
	From       string `json:"from"`
	ContentRef string `json:"contentRef"`
	Options    uint8  `json:"options"`
	Currency   string `json:"currency"`
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	MinBalance string `json:"minBalance,omitempty"`
}

type pollsUpdateParams struct {
	From       string  `json:"from"`
	Currency   string  `json:"currency"`
	ID         uint64  `json:"id"`
	ContentRef *string `json:"contentRef,omitempty"`
	Options    *uint8  `json:"options,omitempty"`
	Start      *uint64 `json:"start,omitempty"`
	End        *uint64 `json:"end,omitempty"`
	MinBalance *string `json:"minBalance,omitempty"`
}

type pollsVoteParams struct {
	From     string `json:"from"`
	Currency string `json:"currency"`
	ID       uint64 `json:"id"`
	Option   *uint8 `json:"option"`
}

type pollsCancelParams struct {
	From     string `json:"from"`
	Currency string `json:"currency"`
	ID       uint64 `json:"id"`
}

type pollsIDParams struct {
	Currency string `json:"currency"`
	ID       uint64 `json:"id"`
}

type pollsListParams struct {
	Currency string  `json:"currency"`
	Cursor   *uint64 `json:"cursor,omitempty"`
	Limit    *int    `json:"limit,omitempty"`
}

type pollsVoteOfParams struct {
	Voter    string `json:"voter"`
	Currency string `json:"currency"`
	ID       uint64 `json:"id"`
}

type pollsVotersResponse struct {
	Voters []string `json:"voters"`
}

type pollsWinningOptionResponse struct {
	WinningOption *uint8 `json:"winningOption"`
	TotalWeight   string `json:"totalWeight"`
}

type pollsCreateResponse struct {
	Currency string `json:"currency"`
	ID       uint64 `json:"id"`
}

type pollsAckResponse struct {
	OK   bool      `json:"ok"`
	Poll *pollView `json:"poll,omitempty"`
}

type pollView struct {
	ID          uint64       `json:"id"`
	Currency    string       `json:"currency"`
	Creator     string       `json:"creator"`
	ContentRef  string       `json:"contentRef"`
	Options     uint8        `json:"options"`
	Tally       []string     `json:"tally"`
	Status      polls.Status `json:"status"`
	MinBalance  string       `json:"minBalance"`
	CreatedAt   uint64       `json:"createdAt"`
	ClosureAt   *uint64      `json:"closureAt,omitempty"`
	TotalWeight string       `json:"totalWeight"`
}

type pollsListResponse struct {
	Polls      []*pollView `json:"polls"`
	NextCursor *uint64     `json:"nextCursor,omitempty"`
}

type pollsVoteOfResponse struct {
	Voted  bool    `json:"voted"`
	Option *uint8  `json:"option,omitempty"`
	Height *uint64 `json:"height,omitempty"`
}

func newPollView(p *polls.Poll) *pollView {
	tally := make([]string, 0, len(p.Tally))
	for _, w := range p.Tally.Weights() {
		tally = append(tally, w.String())
	}
	minBalance := "0"
	if p.MinBalance != nil {
		minBalance = p.MinBalance.String()
	}
	return &pollView{
		ID:          uint64(p.ID),
		Currency:    p.Currency.String(),
		Creator:     crypto.AccountAddress(p.Creator).String(),
		ContentRef:  string(p.ContentRef),
		Options:     p.OptionCount,
		Tally:       tally,
		Status:      p.Status,
		MinBalance:  minBalance,
		CreatedAt:   p.CreatedAt,
		TotalWeight: p.Tally.Sum().String(),
	}
}

func parseNonNegativeAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	normalized := strings.TrimPrefix(trimmed, "+")
	if strings.HasPrefix(normalized, "-") {
		return nil, fmt.Errorf("amount must not be negative")
	}
	amount, ok := new(big.Int).SetString(normalized, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	return amount, nil
}

func (s *Server) requireCaller(w http.ResponseWriter, req *RPCRequest, from string) ([20]byte, bool) {
	if strings.TrimSpace(from) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "from is required", nil)
		return [20]byte{}, false
	}
	caller, err := decodeBech32(from)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return [20]byte{}, false
	}
	return caller, true
}

func parsePollKey(w http.ResponseWriter, req *RPCRequest, currency string, id uint64) (polls.Currency, polls.PollID, bool) {
	cur, err := polls.ParseCurrency(currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return nil, 0, false
	}
	if id == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id is required", nil)
		return nil, 0, false
	}
	return cur, polls.PollID(id), true
}

func (s *Server) lookupPollView(currency polls.Currency, id polls.PollID) *pollView {
	poll, ok, err := s.node.Poll(currency, id)
	if err != nil || !ok {
		return nil
	}
	view := newPollView(poll)
	if at, booked, err := s.node.ClosureAt(currency, id); err == nil && booked {
		view.ClosureAt = &at
	}
	return view
}

func (s *Server) handlePollsCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsCreateParams
	if !decodeParams(w, req, &params) {
		return
	}
	creator, ok := s.requireCaller(w, req, params.From)
	if !ok {
		return
	}
	currency, err := polls.ParseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	minBalance, err := parseNonNegativeAmount(params.MinBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.node.CreatePoll(creator, []byte(params.ContentRef), params.Options, currency, params.Start, params.End, minBalance)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pollsCreateResponse{Currency: currency.String(), ID: uint64(id)})
}

func (s *Server) handlePollsUpdate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsUpdateParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.requireCaller(w, req, params.From)
	if !ok {
		return
	}
	currency, id, ok := parsePollKey(w, req, params.Currency, params.ID)
	if !ok {
		return
	}
	update := polls.PollUpdate{
		OptionCount: params.Options,
		Start:       params.Start,
		End:         params.End,
	}
	if params.ContentRef != nil {
		update.ContentRef = []byte(*params.ContentRef)
	}
	if params.MinBalance != nil {
		amount, err := parseNonNegativeAmount(*params.MinBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		update.MinBalance = amount
	}
	if err := s.node.UpdatePoll(caller, currency, id, update); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pollsAckResponse{OK: true, Poll: s.lookupPollView(currency, id)})
}

func (s *Server) handlePollsVote(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsVoteParams
	if !decodeParams(w, req, &params) {
		return
	}
	voter, ok := s.requireCaller(w, req, params.From)
	if !ok {
		return
	}
	currency, id, ok := parsePollKey(w, req, params.Currency, params.ID)
	if !ok {
		return
	}
	if params.Option == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "option is required", nil)
		return
	}
	if err := s.node.Vote(voter, currency, id, *params.Option); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pollsAckResponse{OK: true})
}

func (s *Server) handlePollsEmergencyCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsCancelParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := s.requireCaller(w, req, params.From)
	if !ok {
		return
	}
	currency, id, ok := parsePollKey(w, req, params.Currency, params.ID)
	if !ok {
		return
	}
	if err := s.node.EmergencyCancel(caller, currency, id); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pollsAckResponse{OK: true, Poll: s.lookupPollView(currency, id)})
}

func (s *Server) handlePollsGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	currency, id, ok := parsePollKey(w, req, params.Currency, params.ID)
	if !ok {
		return
	}
	poll, found, err := s.node.Poll(currency, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "poll not found", fmt.Sprintf("%s/%d", currency, id))
		return
	}
	view := newPollView(poll)
	if at, booked, err := s.node.ClosureAt(currency, id); err == nil && booked {
		view.ClosureAt = &at
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handlePollsList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsListParams
	if !decodeParams(w, req, &params) {
		return
	}
	currency, err := polls.ParseCurrency(params.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid currency", err.Error())
		return
	}
	var cursor polls.PollID
	if params.Cursor != nil {
		cursor = polls.PollID(*params.Cursor)
	}
	limit := 20
	if params.Limit != nil {
		if *params.Limit <= 0 || *params.Limit > 100 {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit must be within 1..100", nil)
			return
		}
		limit = *params.Limit
	}
	page, next, err := s.node.ListPolls(currency, cursor, limit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	resp := pollsListResponse{Polls: make([]*pollView, 0, len(page))}
	for _, poll := range page {
		resp.Polls = append(resp.Polls, newPollView(poll))
	}
	if next != 0 {
		value := uint64(next)
		resp.NextCursor = &value
	}
	writeResult(w, req.ID, resp)
}

func (s *Server) handlePollsVoteOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsVoteOfParams
	if !decodeParams(w, req, &params) {
		return
	}
	voter, err := decodeBech32(params.Voter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid voter address", err.Error())
		return
	}
	currency, id, ok := parsePollKey(w, req, params.Currency, params.ID)
	if !ok {
		return
	}
	record, found, err := s.node.VoteOf(voter, currency, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !found {
		writeResult(w, req.ID, pollsVoteOfResponse{Voted: false})
		return
	}
	option, height := record.Option, record.Height
	writeResult(w, req.ID, pollsVoteOfResponse{Voted: true, Option: &option, Height: &height})
}

func (s *Server) handlePollsVoters(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	currency, id, ok := parsePollKey(w, req, params.Currency, params.ID)
	if !ok {
		return
	}
	_, found, err := s.node.Poll(currency, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "poll not found", fmt.Sprintf("%s/%d", currency, id))
		return
	}
	voters, err := s.node.Voters(currency, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	resp := pollsVotersResponse{Voters: make([]string, 0, len(voters))}
	for _, voter := range voters {
		resp.Voters = append(resp.Voters, crypto.AccountAddress(voter).String())
	}
	writeResult(w, req.ID, resp)
}

func (s *Server) handlePollsWinningOption(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pollsIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	currency, id, ok := parsePollKey(w, req, params.Currency, params.ID)
	if !ok {
		return
	}
	winner, hasWinner, err := s.node.WinningOption(currency, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	resp := pollsWinningOptionResponse{TotalWeight: "0"}
	if poll, found, err := s.node.Poll(currency, id); err == nil && found {
		resp.TotalWeight = poll.Tally.Sum().String()
	}
	if hasWinner {
		resp.WinningOption = &winner
	}
	writeResult(w, req.ID, resp)
}
