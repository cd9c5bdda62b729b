package driverauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/logger"
)

// HTTPHandler exposes the `/auth/request-driver-otp` and
// `/auth/get-complete-driver-info` bootstrap endpoints (spec §4.9).
type HTTPHandler struct {
	svc    *Service
	logger *logger.Logger
}

// NewHTTPHandler wires the driver auth-bootstrap REST surface.
func NewHTTPHandler(svc *Service, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: log}
}

// RegisterRoutes mounts the unauthenticated auth-bootstrap endpoints.
func (handler *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/request-driver-otp", handler.handleRequestOTP)
	mux.HandleFunc("POST /auth/get-complete-driver-info", handler.handleCompleteInfo)
}

type requestOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type completeInfoRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

func (handler *HTTPHandler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	driverID, err := handler.svc.RequestOTP(ctx, req.PhoneNumber)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"success":  true,
		"driverId": driverID,
	})
}

func (handler *HTTPHandler) handleCompleteInfo(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req completeInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	token, d, err := handler.svc.CompleteInfo(ctx, req.PhoneNumber, req.OTP)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"driver":  d,
	})
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
	handler.logger.Error(ctx, "driver_auth_request_failed", msg, err, nil)
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
