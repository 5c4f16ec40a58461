package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"pollchain/core"
	"pollchain/core/events"
	"pollchain/core/genesis"
	"pollchain/crypto"
	"pollchain/native/polls"
	"pollchain/storage"
)

const testToken = "secret-token"

var (
	creatorAddr = crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0xc0}, 20))
	aliceAddr   = crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0xa1}, 20))
	bobAddr     = crypto.MustNewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0xb0}, 20))
)

type testServer struct {
	node   *core.Node
	server *Server
}

func newTestServer(t *testing.T, cfg ServerConfig) *testServer {
	t.Helper()
	t.Setenv("POLLS_RPC_TOKEN", testToken)
	node, err := core.NewNode(storage.NewMemDB(), core.Options{})
	require.NoError(t, err)
	t.Cleanup(node.Close)

	spec, err := genesis.ParseGenesisSpec([]byte(fmt.Sprintf(`networkName: rpc-test
alloc:
  %s: "100"
  %s: "40"
assets:
  - id: 3
    name: shares
    holders:
      %s: "7"
`, aliceAddr, bobAddr, bobAddr)))
	require.NoError(t, err)
	_, err = node.ApplyGenesis(spec)
	require.NoError(t, err)

	return &testServer{node: node, server: NewServer(node, cfg)}
}

func (ts *testServer) call(t *testing.T, method string, params interface{}, authorized bool) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestServerRejectsNonPost(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestServerUnknownMethod(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	rec, resp := ts.call(t, "polls_nope", nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestServerRequiresAuthForMutations(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	params := map[string]interface{}{
		"from": creatorAddr.String(), "contentRef": "cid", "options": 2,
		"currency": "native", "start": 1, "end": 5,
	}
	rec, resp := ts.call(t, "polls_create", params, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	count, err := ts.node.PollCount(polls.Native{})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestServerRateLimitsBySource(t *testing.T) {
	ts := newTestServer(t, ServerConfig{RateLimitPerMinute: 1, RateLimitBurst: 1})
	rec, _ := ts.call(t, "chain_height", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, resp := ts.call(t, "chain_height", nil, false)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestServerRejectsUnknownParamFields(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	rec, resp := ts.call(t, "polls_get", map[string]interface{}{"currency": "native", "id": 1, "extra": true}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestPollsCreateVoteAndGet(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})

	_, resp := ts.call(t, "polls_create", map[string]interface{}{
		"from": creatorAddr.String(), "contentRef": "ipfs://poll", "options": 3,
		"currency": "native", "start": 1, "end": 5, "minBalance": "10",
	}, true)
	var created pollsCreateResponse
	decodeResult(t, resp, &created)
	require.Equal(t, uint64(1), created.ID)
	require.Equal(t, "native", created.Currency)

	vote := map[string]interface{}{"from": aliceAddr.String(), "currency": "native", "id": 1, "option": 2}
	rec, resp := ts.call(t, "polls_vote", vote, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeConflict, resp.Error.Code)

	_, err := ts.node.AdvanceBlock()
	require.NoError(t, err)

	_, resp = ts.call(t, "polls_vote", vote, true)
	require.Nil(t, resp.Error)
	rec, resp = ts.call(t, "polls_vote", vote, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, resp.Error.Message, "already voted")

	_, resp = ts.call(t, "polls_get", map[string]interface{}{"currency": "native", "id": 1}, false)
	var view pollView
	decodeResult(t, resp, &view)
	require.Equal(t, creatorAddr.String(), view.Creator)
	require.Equal(t, []string{"0", "0", "100"}, view.Tally)
	require.Equal(t, "100", view.TotalWeight)
	require.NotNil(t, view.ClosureAt)
	require.Equal(t, uint64(5), *view.ClosureAt)

	_, resp = ts.call(t, "polls_voteOf", map[string]interface{}{"voter": aliceAddr.String(), "currency": "native", "id": 1}, false)
	var voted pollsVoteOfResponse
	decodeResult(t, resp, &voted)
	require.True(t, voted.Voted)
	require.Equal(t, uint8(2), *voted.Option)
	require.Equal(t, uint64(1), *voted.Height)
}

func TestPollsErrorCodes(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	rec, resp := ts.call(t, "polls_create", map[string]interface{}{
		"from": creatorAddr.String(), "contentRef": "cid", "options": 1,
		"currency": "native", "start": 1, "end": 5,
	}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	rec, resp = ts.call(t, "polls_get", map[string]interface{}{"currency": "native", "id": 9}, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeNotFound, resp.Error.Code)

	_, resp = ts.call(t, "polls_create", map[string]interface{}{
		"from": creatorAddr.String(), "contentRef": "cid", "options": 2,
		"currency": "asset:3", "start": 2, "end": 5,
	}, true)
	require.Nil(t, resp.Error)

	rec, resp = ts.call(t, "polls_update", map[string]interface{}{
		"from": aliceAddr.String(), "currency": "asset:3", "id": 1, "end": 8,
	}, true)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, codeForbidden, resp.Error.Code)

	rec, resp = ts.call(t, "polls_vote", map[string]interface{}{
		"from": bobAddr.String(), "currency": "asset:3", "id": 1, "option": 7,
	}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	rec, resp = ts.call(t, "polls_create", map[string]interface{}{
		"from": creatorAddr.String(), "contentRef": "cid", "options": 2,
		"currency": "asset:99", "start": 2, "end": 5,
	}, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestPollsUpdateMovesClosure(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	_, resp := ts.call(t, "polls_create", map[string]interface{}{
		"from": creatorAddr.String(), "contentRef": "cid", "options": 2,
		"currency": "native", "start": 3, "end": 5,
	}, true)
	require.Nil(t, resp.Error)

	_, resp = ts.call(t, "polls_update", map[string]interface{}{
		"from": creatorAddr.String(), "currency": "native", "id": 1, "end": 9, "contentRef": "cid-2",
	}, true)
	var ack pollsAckResponse
	decodeResult(t, resp, &ack)
	require.True(t, ack.OK)
	require.Equal(t, "cid-2", ack.Poll.ContentRef)
	require.Equal(t, uint64(9), *ack.Poll.ClosureAt)
}

func TestPollsListPaginates(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	for i := 0; i < 3; i++ {
		_, resp := ts.call(t, "polls_create", map[string]interface{}{
			"from": creatorAddr.String(), "contentRef": fmt.Sprintf("cid-%d", i), "options": 2,
			"currency": "native", "start": 1, "end": 5,
		}, true)
		require.Nil(t, resp.Error)
	}

	_, resp := ts.call(t, "polls_list", map[string]interface{}{"currency": "native", "limit": 2}, false)
	var page pollsListResponse
	decodeResult(t, resp, &page)
	require.Len(t, page.Polls, 2)
	require.Equal(t, uint64(3), page.Polls[0].ID)
	require.NotNil(t, page.NextCursor)

	_, resp = ts.call(t, "polls_list", map[string]interface{}{"currency": "native", "limit": 2, "cursor": *page.NextCursor}, false)
	var rest pollsListResponse
	decodeResult(t, resp, &rest)
	require.Len(t, rest.Polls, 1)
	require.Equal(t, uint64(1), rest.Polls[0].ID)
	require.Nil(t, rest.NextCursor)
}

func TestLedgerBalanceAndTransfer(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	_, resp := ts.call(t, "ledger_transfer", map[string]interface{}{
		"from": aliceAddr.String(), "to": bobAddr.String(), "currency": "native", "amount": "30",
	}, true)
	require.Nil(t, resp.Error)

	_, resp = ts.call(t, "ledger_balance", map[string]interface{}{"address": bobAddr.String(), "currency": "native"}, false)
	var balance BalanceResponse
	decodeResult(t, resp, &balance)
	require.Equal(t, "70", balance.Balance)

	rec, resp := ts.call(t, "ledger_transfer", map[string]interface{}{
		"from": aliceAddr.String(), "to": bobAddr.String(), "currency": "native", "amount": "1000",
	}, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, codeConflict, resp.Error.Code)

	_, resp = ts.call(t, "chain_events", map[string]interface{}{"limit": 1}, false)
	var evts chainEventsResponse
	decodeResult(t, resp, &evts)
	require.Len(t, evts.Events, 1)
	require.Equal(t, events.TypeTransfer, evts.Events[0].Type)
}

func TestClientSourceIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	server := NewServer(nil, ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "10.0.0.5", server.clientSource(req))
}

func TestClientSourceHonorsForwardedForFromTrustedProxy(t *testing.T) {
	server := NewServer(nil, ServerConfig{TrustedProxies: []string{"10.0.0.1"}})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	require.Equal(t, "198.51.100.7", server.clientSource(req))
}

func TestRateLimitSpoofedForwardedFor(t *testing.T) {
	ts := newTestServer(t, ServerConfig{RateLimitPerMinute: 1, RateLimitBurst: 1})
	send := func(forwarded string) int {
		body := []byte(`{"jsonrpc":"2.0","id":1,"method":"chain_height"}`)
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.RemoteAddr = "10.1.1.1:9000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		ts.server.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusOK, send("198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, send("198.51.100.2"))
	require.Equal(t, http.StatusTooManyRequests, send("198.51.100.3"))
}

func TestPollsVotersAndWinningOption(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	_, resp := ts.call(t, "polls_create", map[string]interface{}{
		"from": creatorAddr.String(), "contentRef": "cid", "options": 2,
		"currency": "native", "start": 1, "end": 5,
	}, true)
	require.Nil(t, resp.Error)
	_, err := ts.node.AdvanceBlock()
	require.NoError(t, err)

	key := map[string]interface{}{"currency": "native", "id": 1}
	_, resp = ts.call(t, "polls_winningOption", key, false)
	var result pollsWinningOptionResponse
	decodeResult(t, resp, &result)
	require.Nil(t, result.WinningOption)
	require.Equal(t, "0", result.TotalWeight)

	for _, vote := range []struct {
		from   string
		option int
	}{{bobAddr.String(), 0}, {aliceAddr.String(), 1}} {
		_, resp = ts.call(t, "polls_vote", map[string]interface{}{"from": vote.from, "currency": "native", "id": 1, "option": vote.option}, true)
		require.Nil(t, resp.Error)
	}

	_, resp = ts.call(t, "polls_voters", key, false)
	var voters pollsVotersResponse
	decodeResult(t, resp, &voters)
	require.Equal(t, []string{bobAddr.String(), aliceAddr.String()}, voters.Voters)

	_, resp = ts.call(t, "polls_winningOption", key, false)
	result = pollsWinningOptionResponse{}
	decodeResult(t, resp, &result)
	require.NotNil(t, result.WinningOption)
	require.Equal(t, uint8(1), *result.WinningOption)
	require.Equal(t, "140", result.TotalWeight)

	missing := map[string]interface{}{"currency": "native", "id": 7}
	rec, resp := ts.call(t, "polls_voters", missing, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeNotFound, resp.Error.Code)
	rec, resp = ts.call(t, "polls_winningOption", missing, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeNotFound, resp.Error.Code)
}
