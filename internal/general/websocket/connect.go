package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"ride-hail/internal/domain/user"
	"ride-hail/internal/general/jwt"

	"github.com/gorilla/websocket"
)

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ConnectDriver upgrades, authenticates (first-frame bearer token, spec §6
// `registerDriver`) and then services a driver's connection until it closes.
func (hub *Hub) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer hub.writeLocks.Delete(conn)

	conn.SetReadLimit(1 << 20)
	if err := conn.SetReadDeadline(time.Now().Add(wsAuthWindow)); err != nil {
		hub.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		return
	}

	_, firstFrame, err := conn.ReadMessage()
	if err != nil {
		hub.logger.Error(r.Context(), "ws_auth_timeout", "Driver disconnected before authentication", err, nil)
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, hub.jwtMgr, user.RoleDriver)
	if err != nil {
		hub.logger.Error(r.Context(), "ws_auth_failed", "Invalid driver auth frame", err, nil)
		_ = hub.wsWriteMessage(conn, websocket.TextMessage, mustJSON(ackFrame(false, "authentication failed", "UNAUTHENTICATED")))
		return
	}
	driverID := res.Claims.Subject

	hub.driverConns.Store(driverID, conn)
	defer hub.driverConns.Delete(driverID)
	defer hub.leaveAllDriverRooms(driverID)

	_ = hub.emit(conn, "registered", map[string]any{"driverId": driverID})
	hub.logger.Info(r.Context(), "ws_driver_connected", "Driver connected", map[string]any{"driver_id": driverID})

	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	})
	stopPing := hub.startPingLoop(conn)
	defer close(stopPing)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			hub.logger.Info(r.Context(), "ws_driver_disconnected", "Driver connection closed", map[string]any{"driver_id": driverID})
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			hub.emitError(conn, ackFrame(false, "malformed frame", "INVALID_INPUT"))
			continue
		}
		hub.routeDriverEvent(r, conn, driverID, frame)
	}
}

// ConnectPassenger upgrades, authenticates and services a passenger's
// connection until it closes (spec §6 `registerUser`).
func (hub *Hub) ConnectPassenger(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer hub.writeLocks.Delete(conn)

	conn.SetReadLimit(1 << 20)
	if err := conn.SetReadDeadline(time.Now().Add(wsAuthWindow)); err != nil {
		hub.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		return
	}

	_, firstFrame, err := conn.ReadMessage()
	if err != nil {
		hub.logger.Error(r.Context(), "ws_auth_timeout", "Passenger disconnected before authentication", err, nil)
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, hub.jwtMgr, user.RolePassenger)
	if err != nil {
		hub.logger.Error(r.Context(), "ws_auth_failed", "Invalid passenger auth frame", err, nil)
		_ = hub.wsWriteMessage(conn, websocket.TextMessage, mustJSON(ackFrame(false, "authentication failed", "UNAUTHENTICATED")))
		return
	}
	passengerID := res.Claims.Subject

	hub.passengerConns.Store(passengerID, conn)
	defer hub.passengerConns.Delete(passengerID)

	_ = hub.emit(conn, "registered", map[string]any{"userId": passengerID})
	hub.logger.Info(r.Context(), "ws_passenger_connected", "Passenger connected", map[string]any{"passenger_id": passengerID})

	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	})
	stopPing := hub.startPingLoop(conn)
	defer close(stopPing)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			hub.logger.Info(r.Context(), "ws_passenger_disconnected", "Passenger connection closed", map[string]any{"passenger_id": passengerID})
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			hub.emitError(conn, ackFrame(false, "malformed frame", "INVALID_INPUT"))
			continue
		}
		hub.routePassengerEvent(r, conn, passengerID, frame)
	}
}

// startPingLoop keeps the connection alive with periodic control pings,
// using the per-connection writer lock so it never races an emit.
func (hub *Hub) startPingLoop(conn *websocket.Conn) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu := hub.lockOf(conn)
				mu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
				mu.Unlock()
				if err != nil {
					_ = conn.Close()
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}

func ackFrame(success bool, message, code string) map[string]any {
	return map[string]any{"success": success, "message": message, "code": code}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
