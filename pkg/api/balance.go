package api

import (
	"encoding/json"
	"net/http"

	"approval-ledger/pkg/workflow"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const userResource = "User"

// balanceNumber renders a balance as a bare JSON number without going
// through float64.
func balanceNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.balances.Get(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, r, err, userResource)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": balanceNumber(balance)})
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, userResource)
		return
	}

	parsed, err := workflow.ParseBalance(p.raw("balance"))
	if err != nil {
		writeError(w, r, err, userResource)
		return
	}

	id := mux.Vars(r)["id"]
	balance, err := s.balances.Set(r.Context(), id, parsed)
	if err != nil {
		writeError(w, r, err, userResource)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"balance": balanceNumber(balance),
	})
}
