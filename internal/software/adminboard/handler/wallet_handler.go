package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type directWalletRequest struct {
	Amount      int    `json:"amount"`
	Type        string `json:"type"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// --- Handler: POST /admin/direct-wallet/{driverId} ---

func (handler *AdminHTTPHandler) handleDirectWallet(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID := r.PathValue("driverId")
	if driverID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "driverId is required", nil)
		return
	}

	var req directWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	delta := req.Amount
	if req.Type == "debit" {
		delta = -req.Amount
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	newBalance, err := handler.svc.AdjustDriverWallet(ctxWithTimeout, driverID, delta, req.Description)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusUnprocessableEntity, "failed to adjust wallet", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"success":        true,
		"new_wallet_balance": newBalance,
	})
}
