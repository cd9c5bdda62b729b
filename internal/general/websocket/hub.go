// Package websocket is the realtime gateway: a single process-wide hub of
// authenticated driver/passenger connections, organized into rooms, that
// every software service pushes events through (spec §2, §6).
package websocket

import (
	"sync"
	"time"

	"ride-hail/internal/general/jwt"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	wsAuthWindow     = 5 * time.Second
	wsIdleTimeout    = 60 * time.Second
	wsPingInterval   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub holds every live connection plus the room index used for dispatch
// fan-out (`drivers_<vehicleType>`) and per-subject delivery.
type Hub struct {
	logger *logger.Logger
	jwtMgr *jwt.Manager

	dispatch     ports.DispatchService
	rideState    ports.RideStateService
	presence     ports.PresenceService
	workinghours ports.WorkingHoursService
	wallet       ports.WalletService
	driverRepo   ports.DriverRepository
	pricingRepo  ports.PricingRepository

	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex

	driverConns    sync.Map // driverID -> *websocket.Conn
	passengerConns sync.Map // passengerID -> *websocket.Conn
	rooms          sync.Map // room name -> *sync.Map (memberID -> *websocket.Conn)
	driverRooms    sync.Map // driverID -> room name, so disconnect can leave cleanly
}

// Deps groups the software-layer services the hub routes inbound events to.
type Deps struct {
	Dispatch     ports.DispatchService
	RideState    ports.RideStateService
	Presence     ports.PresenceService
	WorkingHours ports.WorkingHoursService
	Wallet       ports.WalletService
	DriverRepo   ports.DriverRepository
	PricingRepo  ports.PricingRepository
}

// NewHub wires a realtime gateway around the given software services.
func NewHub(log *logger.Logger, jwtMgr *jwt.Manager, deps Deps) *Hub {
	return &Hub{
		logger:       log,
		jwtMgr:       jwtMgr,
		dispatch:     deps.Dispatch,
		rideState:    deps.RideState,
		presence:     deps.Presence,
		workinghours: deps.WorkingHours,
		wallet:       deps.Wallet,
		driverRepo:   deps.DriverRepo,
		pricingRepo:  deps.PricingRepo,
	}
}
