package websocket

import (
	"encoding/json"
	"net/http"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"

	"github.com/gorilla/websocket"
)

// routePassengerEvent dispatches one decoded frame from an authenticated
// passenger connection (spec §6's inbound catalogue).
func (hub *Hub) routePassengerEvent(r *http.Request, conn *websocket.Conn, passengerID string, frame inboundFrame) {
	ctx := r.Context()

	switch frame.Event {
	case contracts.EventBookRide:
		var p contracts.BookRidePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad bookRide payload", err)))
			return
		}
		vt, err := ride.ParseVehicleType(p.VehicleType)
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "invalid vehicleType", err)))
			return
		}
		res, err := hub.dispatch.BookRide(ctx, ports.BookRideInput{
			PassengerID:    passengerID,
			PassengerName:  p.UserName,
			PassengerPhone: p.UserMobile,
			Pickup:         ride.Point{Lat: p.Pickup.Lat, Lng: p.Pickup.Lng, Address: p.Pickup.Address},
			Drop:           ride.Point{Lat: p.Drop.Lat, Lng: p.Drop.Lng, Address: p.Drop.Address},
			VehicleType:    vt,
			DistanceKM:     p.Distance,
			IdempotencyKey: p.CustomerID,
		})
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		hub.emit(conn, "bookRideResult", res)

	case contracts.EventUserLocationUpdate:
		var p contracts.UserLocationUpdatePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad userLocationUpdate payload", err)))
			return
		}
		if err := hub.presence.UpdateLocation(ctx, ports.UpdateLocationInput{
			SubjectID: passengerID,
			IsDriver:  false,
			Location:  ride.Point{Lat: p.Latitude, Lng: p.Longitude},
		}); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
		}

	case contracts.EventGetCurrentPrices:
		prices, err := hub.pricingRepo.LoadAll(ctx)
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.StoreUnavailable, "failed to load prices", err)))
			return
		}
		hub.emit(conn, contracts.EventCurrentPrices, prices)

	default:
		hub.emitError(conn, ackFrame(false, "unknown event", "INVALID_INPUT"))
	}
}
