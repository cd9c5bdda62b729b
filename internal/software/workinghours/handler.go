package workinghours

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/user"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/jwt"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// HTTPHandler adapts the `POST /drivers/working-hours/{action}` REST surface
// (spec §6) to the Working-Hours Service.
type HTTPHandler struct {
	svc    ports.WorkingHoursService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewHTTPHandler wires the working-hours REST surface.
func NewHTTPHandler(svc ports.WorkingHoursService, log *logger.Logger, auth *jwt.Manager) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: log, auth: auth}
}

// RegisterRoutes mounts the working-hours endpoints on the provided mux.
func (handler *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /drivers/working-hours/start",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleStart))
	mux.HandleFunc("POST /drivers/working-hours/pause",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handlePause))
	mux.HandleFunc("POST /drivers/working-hours/resume",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleResume))
	mux.HandleFunc("POST /drivers/working-hours/stop",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleStop))
	mux.HandleFunc("POST /drivers/working-hours/extend",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleExtend))
	mux.HandleFunc("POST /drivers/working-hours/add-half-time",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleAddHalf))
	mux.HandleFunc("POST /drivers/working-hours/add-full-time",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleAddFull))
	mux.HandleFunc("GET /drivers/working-hours/status/{driverId}",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver, user.RoleAdmin)(handler.handleStatus))
}

func (handler *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	driverID := strings.TrimSpace(r.PathValue("driverId"))
	if driverID == "" {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "driverId is required", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpErrorMsg(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}
	if claims.Role == user.RoleDriver && strings.TrimSpace(claims.Subject) != driverID {
		handler.httpErrorMsg(ctx, w, http.StatusForbidden, "driverId does not match token subject", nil)
		return
	}

	status, err := handler.svc.Status(ctx, driverID)
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, status)
}

type shiftRequest struct {
	DriverID string `json:"driverId"`
}

func (handler *HTTPHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	driverID, ok := handler.authorizedDriver(ctx, w, r)
	if !ok {
		return
	}
	status, err := handler.svc.Start(ctx, ports.StartShiftInput{DriverID: driverID, Limit: driver.WorkingHoursFull})
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, status)
}

func (handler *HTTPHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	driverID, ok := handler.authorizedDriver(ctx, w, r)
	if !ok {
		return
	}
	if err := handler.svc.Pause(ctx, driverID); err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (handler *HTTPHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	driverID, ok := handler.authorizedDriver(ctx, w, r)
	if !ok {
		return
	}
	if err := handler.svc.Resume(ctx, driverID); err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (handler *HTTPHandler) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	driverID, ok := handler.authorizedDriver(ctx, w, r)
	if !ok {
		return
	}
	if err := handler.svc.Stop(ctx, driverID); err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (handler *HTTPHandler) handleExtend(w http.ResponseWriter, r *http.Request) {
	handler.extend(w, r, driver.WorkingHoursHalf)
}

func (handler *HTTPHandler) handleAddHalf(w http.ResponseWriter, r *http.Request) {
	handler.extend(w, r, driver.WorkingHoursHalf)
}

func (handler *HTTPHandler) handleAddFull(w http.ResponseWriter, r *http.Request) {
	handler.extend(w, r, driver.WorkingHoursFull)
}

func (handler *HTTPHandler) extend(w http.ResponseWriter, r *http.Request, amount driver.WorkingHoursLimit) {
	ctx := handler.withReqID(r.Context(), r)
	driverID, ok := handler.authorizedDriver(ctx, w, r)
	if !ok {
		return
	}
	status, err := handler.svc.Extend(ctx, ports.ExtendShiftInput{DriverID: driverID, Limit: amount})
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, status)
}

// authorizedDriver decodes the body for driverId and checks it matches the
// token subject, mirroring the teacher's driver-owns-resource check.
func (handler *HTTPHandler) authorizedDriver(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return "", false
	}
	driverID := strings.TrimSpace(req.DriverID)
	if driverID == "" {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "driverId is required", nil)
		return "", false
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpErrorMsg(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return "", false
	}
	if strings.TrimSpace(claims.Subject) != driverID {
		handler.httpErrorMsg(ctx, w, http.StatusForbidden, "driverId does not match token subject", nil)
		return "", false
	}
	return driverID, true
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
	handler.logger.Error(ctx, "working_hours_request_failed", msg, err, nil)
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
