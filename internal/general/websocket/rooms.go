package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// JoinRoom adds memberID's connection to room (e.g. a vehicle type's
// `drivers_<vehicleType>` dispatch room).
func (hub *Hub) JoinRoom(room, memberID string, conn *websocket.Conn) {
	v, _ := hub.rooms.LoadOrStore(room, &sync.Map{})
	members := v.(*sync.Map)
	members.Store(memberID, conn)
}

// LeaveRoom removes memberID from room.
func (hub *Hub) LeaveRoom(room, memberID string) {
	if v, ok := hub.rooms.Load(room); ok {
		members := v.(*sync.Map)
		members.Delete(memberID)
	}
}

// BroadcastToRoom emits event/data to every member of room except excludeID
// (used by ride acceptance to notify every other driver it lost the offer).
func (hub *Hub) BroadcastToRoom(room, event string, data any, excludeID string) {
	v, ok := hub.rooms.Load(room)
	if !ok {
		return
	}
	members := v.(*sync.Map)
	members.Range(func(key, value any) bool {
		memberID := key.(string)
		if memberID == excludeID {
			return true
		}
		conn := value.(*websocket.Conn)
		if err := hub.emit(conn, event, data); err != nil {
			hub.logger.Error(context.Background(), "room_broadcast_failed", "Failed to broadcast to room member", err, map[string]any{
				"room": room, "member_id": memberID,
			})
		}
		return true
	})
}

// SendToDriver emits event/data to a single driver, if connected.
func (hub *Hub) SendToDriver(driverID, event string, data any) bool {
	v, ok := hub.driverConns.Load(driverID)
	if !ok {
		return false
	}
	conn := v.(*websocket.Conn)
	if err := hub.emit(conn, event, data); err != nil {
		hub.logger.Error(context.Background(), "send_to_driver_failed", "Failed to send event to driver", err, map[string]any{
			"driver_id": driverID, "event": event,
		})
		return false
	}
	return true
}

// SendToPassenger emits event/data to a single passenger, if connected.
func (hub *Hub) SendToPassenger(passengerID, event string, data any) bool {
	v, ok := hub.passengerConns.Load(passengerID)
	if !ok {
		return false
	}
	conn := v.(*websocket.Conn)
	if err := hub.emit(conn, event, data); err != nil {
		hub.logger.Error(context.Background(), "send_to_passenger_failed", "Failed to send event to passenger", err, map[string]any{
			"passenger_id": passengerID, "event": event,
		})
		return false
	}
	return true
}

// IsDriverConnected reports whether driverID currently has a live socket.
func (hub *Hub) IsDriverConnected(driverID string) bool {
	_, ok := hub.driverConns.Load(driverID)
	return ok
}
