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

// routeDriverEvent dispatches one decoded frame from an authenticated driver
// connection to the appropriate software service (spec §6's inbound catalogue).
func (hub *Hub) routeDriverEvent(r *http.Request, conn *websocket.Conn, driverID string, frame inboundFrame) {
	ctx := r.Context()

	switch frame.Event {
	case contracts.EventDriverGoOnline:
		var p struct {
			VehicleType string  `json:"vehicleType"`
			Latitude    float64 `json:"latitude"`
			Longitude   float64 `json:"longitude"`
		}
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad driverGoOnline payload", err)))
			return
		}
		err := hub.presence.GoLive(ctx, ports.GoLiveInput{
			DriverID: driverID,
			Location: ride.Point{Lat: p.Latitude, Lng: p.Longitude},
		})
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		if d, derr := hub.driverRepo.GetByID(ctx, driverID); derr == nil {
			room := d.VehicleType.Room()
			hub.JoinRoom(room, driverID, conn)
			hub.driverRooms.Store(driverID, room)
		}
		hub.emitError(conn, ackFrame(true, "online", ""))

	case contracts.EventDriverOffline:
		if err := hub.presence.GoOffline(ctx, driverID); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		hub.leaveAllDriverRooms(driverID)
		hub.emitError(conn, ackFrame(true, "offline", ""))

	case contracts.EventDriverLocationUpdate, contracts.EventDriverHeartbeat:
		var p struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad location payload", err)))
			return
		}
		if err := hub.presence.UpdateLocation(ctx, ports.UpdateLocationInput{
			SubjectID: driverID,
			IsDriver:  true,
			Location:  ride.Point{Lat: p.Latitude, Lng: p.Longitude},
		}); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
		}

	case contracts.EventAcceptRide:
		var p contracts.AcceptRidePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad acceptRide payload", err)))
			return
		}
		res, err := hub.dispatch.AcceptRide(ctx, ports.AcceptRideInput{DriverID: driverID, RideID: p.RideID})
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		hub.emit(conn, contracts.EventRideAccepted, map[string]any{"rideId": res.RideID, "raidId": res.RaidID, "otp": res.OTP})

	case contracts.EventRejectRide:
		var p contracts.RejectRidePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad rejectRide payload", err)))
			return
		}
		if err := hub.dispatch.RejectRide(ctx, ports.RejectRideInput{DriverID: driverID, RideID: p.RideID, Reason: p.Reason}); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		hub.emitError(conn, ackFrame(true, "rejected", ""))

	case contracts.EventOTPVerified, contracts.EventDriverStartedRide:
		var p struct {
			RideID string `json:"rideId"`
			OTP    string `json:"otp"`
		}
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad driverStartedRide payload", err)))
			return
		}
		res, err := hub.rideState.StartRide(ctx, ports.StartRideInput{DriverID: driverID, RideID: p.RideID, OTP: p.OTP})
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		hub.emitError(conn, ackFrame(true, "started", ""))
		hub.emit(conn, contracts.EventRideStatusUpdate, contracts.RideStatusUpdateEvent{
			Type: "status", RideID: res.RideID, Status: res.Status, Timestamp: res.StartedAt,
		})

	case contracts.EventDriverCompletedRide:
		var p contracts.DriverCompletedRidePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad driverCompletedRide payload", err)))
			return
		}
		paymentMethod, err := ride.ParsePaymentMethod(p.PaymentMethod)
		if err != nil {
			paymentMethod = ride.PaymentCash
		}
		res, err := hub.rideState.CompleteRide(ctx, ports.CompleteRideInput{
			DriverID:         driverID,
			RideID:           p.RideID,
			ActualDistanceKM: p.Distance,
			ActualDrop:       ride.Point{Lat: p.ActualDrop.Lat, Lng: p.ActualDrop.Lng, Address: p.ActualDrop.Address},
			PaymentMethod:    paymentMethod,
		})
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		hub.emitError(conn, ackFrame(true, "completed", ""))
		hub.emit(conn, contracts.EventRideCompleted, contracts.RideCompletedEvent{
			Type: "completed", RideID: res.RideID, ActualFare: res.ActualFare,
		})

	case contracts.EventUpdateFCMToken:
		var p struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad updateFCMToken payload", err)))
			return
		}
		if err := hub.driverRepo.UpdatePushToken(ctx, driverID, p.Token); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		hub.emitError(conn, ackFrame(true, "token updated", ""))

	case contracts.EventRequestRideOTP:
		var p struct {
			RideID string `json:"rideId"`
		}
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.InvalidInput, "bad requestRideOTP payload", err)))
			return
		}
		r, err := hub.rideState.GetRide(ctx, p.RideID)
		if err != nil {
			hub.emitError(conn, apperr.ToAckPayload(err))
			return
		}
		if r.DriverRef == nil || *r.DriverRef != driverID {
			hub.emitError(conn, apperr.ToAckPayload(apperr.New(apperr.Unauthorized, "not your ride", nil)))
			return
		}
		hub.emitError(conn, ackFrame(true, "", ""))
		hub.emit(conn, "rideOTP", map[string]any{"rideId": r.ID, "otp": r.OTP})

	default:
		hub.emitError(conn, ackFrame(false, "unknown event", "INVALID_INPUT"))
	}
}

// leaveAllDriverRooms removes driverID from its vehicle-type dispatch room.
func (hub *Hub) leaveAllDriverRooms(driverID string) {
	if v, ok := hub.driverRooms.LoadAndDelete(driverID); ok {
		hub.LeaveRoom(v.(string), driverID)
	}
}
