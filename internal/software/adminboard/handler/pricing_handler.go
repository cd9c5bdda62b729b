package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ride-hail/internal/domain/ride"
)

// --- Handler: GET /admin/ride-prices ---

func (handler *AdminHTTPHandler) handleGetRidePrices(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	prices, err := handler.svc.GetRidePrices(ctxWithTimeout)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to fetch ride prices", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, prices)
}

// --- Handler: POST /admin/ride-prices ---

type setRidePriceRequest struct {
	VehicleType string `json:"vehicle_type"`
	PricePerKM  int    `json:"price_per_km"`
}

func (handler *AdminHTTPHandler) handleSetRidePrice(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req setRidePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	vt, err := ride.ParseVehicleType(req.VehicleType)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid vehicle type", err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handler.svc.SetRidePrice(ctxWithTimeout, vt, req.PricePerKM); err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusUnprocessableEntity, "failed to set ride price", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]bool{"success": true})
}
