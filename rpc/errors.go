package rpc

import (
	"errors"
	"net/http"

	"pollchain/core/state"
	"pollchain/native/common"
	"pollchain/native/polls"
)

// writeEngineError maps poll and ledger errors onto JSON-RPC codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := classifyError(err)
	writeError(w, status, id, code, err.Error(), nil)
}

func classifyError(err error) (int, int) {
	switch {
	case errors.Is(err, polls.ErrSchedulerUnavailable):
		return http.StatusServiceUnavailable, codeServerError
	case errors.Is(err, polls.ErrInvalidPollOptions),
		errors.Is(err, polls.ErrInvalidPollDetails),
		errors.Is(err, polls.ErrInvalidPollPeriod),
		errors.Is(err, polls.ErrInvalidPollCurrency),
		errors.Is(err, polls.ErrInvalidPollVote),
		errors.Is(err, polls.ErrInsufficientFunds):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, polls.ErrNotPollCreator):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, polls.ErrPollNotFound), errors.Is(err, polls.ErrPollInvalid):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, polls.ErrPollAlreadyFinished),
		errors.Is(err, polls.ErrPollAlreadyStarted),
		errors.Is(err, polls.ErrPollNotStarted),
		errors.Is(err, polls.ErrPollAlreadyExists),
		errors.Is(err, polls.ErrAlreadyVoted),
		errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, common.ErrModulePaused):
		return http.StatusConflict, codeConflict
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
