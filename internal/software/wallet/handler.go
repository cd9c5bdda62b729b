package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"ride-hail/internal/domain/user"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/jwt"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// HTTPHandler adapts the passenger wallet REST surface (spec §4.9:
// `GET /wallet/balance`, `POST /wallet/add-money|payment|withdraw|credit-ride`)
// to the Wallet Ledger service.
type HTTPHandler struct {
	svc    ports.WalletService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewHTTPHandler wires the passenger wallet REST surface.
func NewHTTPHandler(svc ports.WalletService, log *logger.Logger, auth *jwt.Manager) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: log, auth: auth}
}

// RegisterRoutes mounts the passenger wallet endpoints on the provided mux.
func (handler *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /wallet/balance",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger)(handler.handleBalance))
	mux.HandleFunc("POST /wallet/add-money",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger)(handler.handleAddMoney))
	mux.HandleFunc("POST /wallet/payment",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger)(handler.handlePayment))
	mux.HandleFunc("POST /wallet/withdraw",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger)(handler.handleWithdraw))
	mux.HandleFunc("POST /wallet/credit-ride",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger)(handler.handleCreditRide))
}

type amountRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description,omitempty"`
}

type creditRideRequest struct {
	Amount int    `json:"amount"`
	RideID string `json:"rideId"`
}

func (handler *HTTPHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	passengerID, ok := handler.subject(w, r)
	if !ok {
		return
	}

	balance, err := handler.svc.Balance(ctx, passengerID, false)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]int{"balance": balance})
}

func (handler *HTTPHandler) handleAddMoney(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	passengerID, ok := handler.subject(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	newBalance, err := handler.svc.AddMoney(ctx, passengerID, req.Amount)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]int{"balance": newBalance})
}

func (handler *HTTPHandler) handlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	passengerID, ok := handler.subject(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	newBalance, err := handler.svc.Pay(ctx, passengerID, req.Amount, req.Description)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]int{"balance": newBalance})
}

func (handler *HTTPHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	passengerID, ok := handler.subject(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	newBalance, err := handler.svc.Withdraw(ctx, passengerID, req.Amount)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]int{"balance": newBalance})
}

func (handler *HTTPHandler) handleCreditRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	passengerID, ok := handler.subject(w, r)
	if !ok {
		return
	}
	var req creditRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.RideID) == "" {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "rideId is required", nil)
		return
	}

	newBalance, err := handler.svc.CreditRide(ctx, passengerID, req.Amount, req.RideID)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]int{"balance": newBalance})
}

// subject pulls the authenticated passenger id off the bearer token, mirroring
// the driver-owns-resource checks elsewhere in the REST surface.
func (handler *HTTPHandler) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := jwt.RequireClaims(r)
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		handler.httpErrorMsg(r.Context(), w, http.StatusUnauthorized, "missing auth claims", nil)
		return "", false
	}
	return claims.Subject, true
}

func (handler *HTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, err error) {
	handler.httpErrorMsg(ctx, w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error(), err)
}

func (handler *HTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	buf, err := json.Marshal(data)
	if err != nil {
		handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *HTTPHandler) httpErrorMsg(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	handler.logger.Error(ctx, "wallet_request_failed", msg, err, nil)
	handler.jsonResponse(ctx, w, status, map[string]string{"error": msg})
}

func (handler *HTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		var b [12]byte
		_, _ = rand.Read(b[:])
		reqID = hex.EncodeToString(b[:])
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
