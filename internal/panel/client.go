package panel

import (
	"context"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/observer"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

// LoadSelector tells the client how much of the panel to read on connect.
type LoadSelector int

const (
	// LoadBasicInfo authenticates and reads identity only (model, serial,
	// firmware). Used when probing a panel before it is configured.
	LoadBasicInfo LoadSelector = iota + 1
	// LoadAll additionally reads the area, point, door and output
	// inventory and starts status subscriptions.
	LoadAll
)

// Inventory is the typed object collections a client exposes once it has
// authenticated. The maps and the objects in them are stable for the life of
// the client; reconnects update objects in place.
type Inventory interface {
	Areas() map[int]*types.Area
	Points() map[int]*types.Point
	Doors() map[int]*types.Door
	Outputs() map[int]*types.Output
}

// Commander is the set of panel commands the bridge forwards. Implementations
// serialise commands internally.
type Commander interface {
	AreaDisarm(ctx context.Context, id int) error
	AreaArmPart(ctx context.Context, id int) error
	AreaArmAll(ctx context.Context, id int) error
	DoorRelock(ctx context.Context, id int) error
	DoorUnlock(ctx context.Context, id int) error
	DoorCycle(ctx context.Context, id int) error
	SetOutputActive(ctx context.Context, id int) error
	SetOutputInactive(ctx context.Context, id int) error
	SetPanelDate(ctx context.Context, t time.Time) error
}

// Client is the observable contract of a panel protocol client. The wire
// protocol behind it is not part of this module.
type Client interface {
	Inventory
	Commander

	// Connect blocks until the session is authenticated and the requested
	// data is loaded, or fails.
	Connect(ctx context.Context, load LoadSelector) error
	// Disconnect is idempotent.
	Disconnect(ctx context.Context) error

	ConnectionStatus() bool
	ConnectionStatusObserver() *observer.Observer
	HistoryObserver() *observer.Observer
	FaultsObserver() *observer.Observer

	// Events is the history log in ascending ID order.
	Events() []types.HistoryEvent
	PanelFaults() []string
	// SetHistoryCursor hands over the last persisted history ID and log.
	// The client replays only events after lastID.
	SetHistoryCursor(lastID int64, events []types.HistoryEvent)

	Model() string
	SerialNumber() string
	FirmwareVersion() string
}
