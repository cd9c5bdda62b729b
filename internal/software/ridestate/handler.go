package ridestate

import (
	"encoding/json"
	"net/http"
	"strings"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/domain/user"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/jwt"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// HTTPHandler exposes the cache-bypassing authoritative reads spec §4.9
// requires alongside the realtime gateway.
type HTTPHandler struct {
	rides   ports.RideStateService
	drivers ports.DriverRepository
	logger  *logger.Logger
	auth    *jwt.Manager
}

// NewHTTPHandler wires the ride/driver read surface.
func NewHTTPHandler(rides ports.RideStateService, drivers ports.DriverRepository, log *logger.Logger, auth *jwt.Manager) *HTTPHandler {
	return &HTTPHandler{rides: rides, drivers: drivers, logger: log, auth: auth}
}

// RegisterRoutes mounts the authoritative read endpoints plus the REST
// fallback surface for drivers that cannot hold a realtime connection
// (spec §4.9): arrival, start, completion, status and push-token updates.
func (handler *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	allRoles := []user.Role{user.RolePassenger, user.RoleDriver, user.RoleAdmin}
	driverOnly := []user.Role{user.RoleDriver}
	mux.HandleFunc("GET /rides/{rideId}", jwt.AuthMiddlewareFunc(handler.auth, allRoles...)(handler.handleGetRide))
	mux.HandleFunc("GET /drivers/{driverId}", jwt.AuthMiddlewareFunc(handler.auth, allRoles...)(handler.handleGetDriver))
	mux.HandleFunc("POST /rides/arrived", jwt.AuthMiddlewareFunc(handler.auth, driverOnly...)(handler.handleArrived))
	mux.HandleFunc("POST /rides/start", jwt.AuthMiddlewareFunc(handler.auth, driverOnly...)(handler.handleStart))
	mux.HandleFunc("POST /rides/simple-complete", jwt.AuthMiddlewareFunc(handler.auth, driverOnly...)(handler.handleSimpleComplete))
	mux.HandleFunc("PATCH /drivers/{driverId}/status", jwt.AuthMiddlewareFunc(handler.auth, driverOnly...)(handler.handleUpdateStatus))
	mux.HandleFunc("POST /drivers/fcm-token", jwt.AuthMiddlewareFunc(handler.auth, driverOnly...)(handler.handleFCMToken))
}

func (handler *HTTPHandler) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rideID := strings.TrimSpace(r.PathValue("rideId"))
	if rideID == "" {
		handler.writeError(w, http.StatusBadRequest, "rideId is required")
		return
	}

	rideObj, err := handler.rides.GetRide(ctx, rideID)
	if err != nil {
		handler.writeError(w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error())
		return
	}
	handler.writeJSON(w, http.StatusOK, rideObj)
}

func (handler *HTTPHandler) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID := strings.TrimSpace(r.PathValue("driverId"))
	if driverID == "" {
		handler.writeError(w, http.StatusBadRequest, "driverId is required")
		return
	}

	d, err := handler.drivers.GetByID(ctx, driverID)
	if err != nil {
		handler.writeError(w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error())
		return
	}
	handler.writeJSON(w, http.StatusOK, d)
}

type arrivedRequest struct {
	RideID string `json:"rideId"`
}

func (handler *HTTPHandler) handleArrived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var req arrivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := handler.rides.MarkArrived(ctx, ports.ArriveInput{DriverID: claims.Subject, RideID: req.RideID}); err != nil {
		handler.writeError(w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error())
		return
	}
	handler.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type startRideRequest struct {
	RideID string `json:"rideId"`
	OTP    string `json:"otp"`
}

func (handler *HTTPHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var req startRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := handler.rides.StartRide(ctx, ports.StartRideInput{DriverID: claims.Subject, RideID: req.RideID, OTP: req.OTP})
	if err != nil {
		handler.writeError(w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error())
		return
	}
	handler.writeJSON(w, http.StatusOK, result)
}

// simpleCompleteRequest is the REST fallback path's (spec §4.9) completion
// body; its fields differ from the realtime driverCompletedRide payload, but
// it drives the same CompleteRide transition as a connected driver would.
type simpleCompleteRequest struct {
	RideID           string  `json:"rideId"`
	ActualDistanceKM float64 `json:"actualDistanceKm"`
	PaymentMethod    string  `json:"paymentMethod"`
	ActualDrop       struct {
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Address string  `json:"address"`
	} `json:"actualDrop"`
}

func (handler *HTTPHandler) handleSimpleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var req simpleCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	paymentMethod, err := ride.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		handler.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := handler.rides.CompleteRide(ctx, ports.CompleteRideInput{
		DriverID:         claims.Subject,
		RideID:           req.RideID,
		ActualDistanceKM: req.ActualDistanceKM,
		ActualDrop:       ride.Point{Lat: req.ActualDrop.Lat, Lng: req.ActualDrop.Lng, Address: req.ActualDrop.Address},
		PaymentMethod:    paymentMethod,
	})
	if err != nil {
		handler.writeError(w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error())
		return
	}
	handler.writeJSON(w, http.StatusOK, result)
}

type updateDriverStatusRequest struct {
	Status string `json:"status"`
}

func (handler *HTTPHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID := strings.TrimSpace(r.PathValue("driverId"))
	if driverID == "" {
		handler.writeError(w, http.StatusBadRequest, "driverId is required")
		return
	}

	var req updateDriverStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := driver.ParseStatus(req.Status)
	if err != nil {
		handler.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := handler.drivers.UpdateStatus(ctx, driverID, status); err != nil {
		handler.writeError(w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error())
		return
	}
	handler.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type fcmTokenRequest struct {
	DriverID string `json:"driverId"`
	FCMToken string `json:"fcmToken"`
}

func (handler *HTTPHandler) handleFCMToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req fcmTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DriverID == "" {
		handler.writeError(w, http.StatusBadRequest, "driverId is required")
		return
	}

	if err := handler.drivers.UpdatePushToken(ctx, req.DriverID, req.FCMToken); err != nil {
		handler.writeError(w, apperr.ToHTTPStatus(apperr.CodeOf(err)), err.Error())
		return
	}
	handler.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (handler *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	buf, err := json.Marshal(data)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *HTTPHandler) writeError(w http.ResponseWriter, status int, msg string) {
	handler.writeJSON(w, status, map[string]string{"error": msg})
}
