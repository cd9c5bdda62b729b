package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/domain/user"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/jwt"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// HTTPHandler exposes the REST fallback for booking a ride (spec §4.9,
// `POST /rides/book-ride-enhanced`) for passenger clients that book before
// opening the realtime gateway.
type HTTPHandler struct {
	svc    ports.DispatchService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewHTTPHandler wires the booking REST surface.
func NewHTTPHandler(svc ports.DispatchService, log *logger.Logger, auth *jwt.Manager) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: log, auth: auth}
}

// RegisterRoutes mounts the enhanced booking endpoint.
func (handler *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rides/book-ride-enhanced",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger)(handler.handleBookRideEnhanced))
}

type pointRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type bookRideEnhancedRequest struct {
	PassengerName  string       `json:"passengerName"`
	PassengerPhone string       `json:"passengerPhone"`
	Pickup         pointRequest `json:"pickup"`
	Drop           pointRequest `json:"drop"`
	VehicleType    string       `json:"vehicleType"`
	DistanceKM     float64      `json:"distanceKm"`
	IdempotencyKey string       `json:"idempotencyKey"`
}

func (handler *HTTPHandler) handleBookRideEnhanced(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpErrorMsg(ctx, w, http.StatusUnauthorized, "missing auth claims", nil)
		return
	}

	var req bookRideEnhancedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	vehicleType, err := ride.ParseVehicleType(req.VehicleType)
	if err != nil {
		handler.httpErrorMsg(ctx, w, http.StatusBadRequest, "invalid vehicleType", err)
		return
	}

	result, err := handler.svc.BookRide(ctx, ports.BookRideInput{
		PassengerID:    claims.Subject,
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
		Pickup:         ride.Point{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng, Address: req.Pickup.Address},
		Drop:           ride.Point{Lat: req.Drop.Lat, Lng: req.Drop.Lng, Address: req.Drop.Address},
		VehicleType:    vehicleType,
		DistanceKM:     req.DistanceKM,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		handler.httpError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, result)
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
	handler.logger.Error(ctx, "book_ride_enhanced_failed", msg, err, nil)
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
