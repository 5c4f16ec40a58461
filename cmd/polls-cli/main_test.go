package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	method string
	params map[string]interface{}
	auth   bool
}

func stubRPC(t *testing.T, result string, rpcErr *rpcError) *[]recordedCall {
	t.Helper()
	calls := &[]recordedCall{}
	original := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		call := recordedCall{method: method, auth: requireAuth}
		if params != nil {
			call.params = params.(map[string]interface{})
		}
		*calls = append(*calls, call)
		return json.RawMessage(result), rpcErr, nil
	}
	t.Cleanup(func() { rpcCall = original })
	return calls
}

func TestApplyGlobalFlags(t *testing.T) {
	rpcEndpoint = defaultRPCEndpoint()
	args, err := applyGlobalFlags([]string{"--rpc", "http://node:9000", "get", "--id", "1"})
	require.NoError(t, err)
	require.Equal(t, []string{"get", "--id", "1"}, args)
	require.Equal(t, "http://node:9000", rpcEndpoint)

	_, err = applyGlobalFlags([]string{"--rpc"})
	require.Error(t, err)
}

func TestCreateSendsParams(t *testing.T) {
	calls := stubRPC(t, `{"currency":"native","id":1}`, nil)
	var stdout, stderr bytes.Buffer
	code := run([]string{"create", "--from", "unit1xyz", "--content", "cid", "--options", "3", "--start", "2", "--end", "9"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "polls_create", call.method)
	require.True(t, call.auth)
	require.Equal(t, "cid", call.params["contentRef"])
	require.Equal(t, uint(3), call.params["options"])
	require.Equal(t, uint64(9), call.params["end"])
	require.Contains(t, stdout.String(), `"id":1`)
}

func TestUpdateOnlySendsProvidedFields(t *testing.T) {
	calls := stubRPC(t, `{"ok":true}`, nil)
	var stdout, stderr bytes.Buffer
	code := run([]string{"update", "--from", "unit1xyz", "--id", "4", "--end", "12"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	params := (*calls)[0].params
	require.Equal(t, uint64(12), params["end"])
	_, hasStart := params["start"]
	require.False(t, hasStart)
	_, hasContent := params["contentRef"]
	require.False(t, hasContent)
}

func TestVoteValidatesOption(t *testing.T) {
	calls := stubRPC(t, `{"ok":true}`, nil)
	var stdout, stderr bytes.Buffer
	code := run([]string{"vote", "--from", "unit1xyz", "--id", "1"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Empty(t, *calls)
	require.Contains(t, stderr.String(), "--option")
}

func TestRPCErrorIsReported(t *testing.T) {
	stubRPC(t, ``, &rpcError{Code: -32005, Message: "polls: already voted"})
	var stdout, stderr bytes.Buffer
	code := run([]string{"vote", "--from", "unit1xyz", "--id", "1", "--option", "0"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "RPC error -32005: polls: already voted")
}

func TestTransferNormalizesAmount(t *testing.T) {
	calls := stubRPC(t, `{"ok":true}`, nil)
	var stdout, stderr bytes.Buffer
	code := run([]string{"transfer", "--from", "unit1a", "--to", "unit1b", "--amount", "1_000"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t, "1000", (*calls)[0].params["amount"])

	code = run([]string{"transfer", "--from", "unit1a", "--to", "unit1b", "--amount", "-1"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestPollQueriesUseReadOnlyMethods(t *testing.T) {
	calls := stubRPC(t, `{}`, nil)
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"voters", "--id", "2", "--currency", "asset:3"}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"result", "--id", "2"}, &stdout, &stderr), stderr.String())
	require.Equal(t, 1, run([]string{"voters"}, &stdout, &stderr))

	require.Len(t, *calls, 2)
	require.Equal(t, "polls_voters", (*calls)[0].method)
	require.False(t, (*calls)[0].auth)
	require.Equal(t, "asset:3", (*calls)[0].params["currency"])
	require.Equal(t, "polls_winningOption", (*calls)[1].method)
	require.Equal(t, uint64(2), (*calls)[1].params["id"])
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 1, run([]string{"bogus"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "Unknown command")
}
