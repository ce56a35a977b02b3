package panel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/log"
)

// Factory builds a client for one configured panel.
type Factory func(cfg config.PanelConfig, logger *log.Logger) (Client, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// RegisterDriver makes a client implementation available under name.
// Registering the same name twice panics.
func RegisterDriver(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic(fmt.Sprintf("panel: driver %q registered twice", name))
	}
	drivers[name] = f
}

func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewClient(cfg config.PanelConfig, logger *log.Logger) (Client, error) {
	driversMu.RLock()
	f, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownDriver, cfg.Driver, Drivers())
	}
	return f(cfg, logger)
}

// CredentialsFrom extracts the secrets of a panel config.
func CredentialsFrom(cfg config.PanelConfig) Credentials {
	return Credentials{
		Password:      cfg.Password,
		InstallerCode: cfg.InstallerCode,
		UserCode:      cfg.UserCode,
	}
}
