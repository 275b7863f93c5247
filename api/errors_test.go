package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stewardly/treasury/ledger"
)

func TestWriteError_InconsistencyOutranksItsCause(t *testing.T) {
	// An inconsistency unwraps to its cause; a missing-fund cause must not
	// demote the operator-facing 500 to a client-facing 404.
	rec := httptest.NewRecorder()
	writeError(rec, &ledger.InconsistencyError{
		FundID: "general",
		Stage:  "compensation",
		Cause:  ledger.ErrFundNotFound,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWriteError_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ledger.ErrFundNotFound, http.StatusNotFound},
		{"conflict", ledger.ErrDuplicateMemberLink, http.StatusConflict},
		{"validation", ledger.Validationf("amount", "must be positive"), http.StatusBadRequest},
		{"insufficient funds", ledger.ErrInsufficientFunds, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, c.err)
			assert.Equal(t, c.want, rec.Code)
		})
	}
}
