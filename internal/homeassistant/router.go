package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/entity"
	"github.com/daemonp/bosch2mqtt/internal/log"
)

const commandTimeout = 30 * time.Second

// ClockService sets the panel clock on the named panels, or all of them when
// targets is empty. A nil when means now.
type ClockService interface {
	SetPanelClock(ctx context.Context, targets []string, when *time.Time) error
}

// SetDateTimeRequest is the payload of the set_date_time topic. Both fields
// are optional.
type SetDateTimeRequest struct {
	Targets  []string `json:"targets"`
	DateTime string   `json:"datetime"`
}

// Router turns messages on command topics into entity commands and clock
// service calls.
type Router struct {
	ha    *HomeAssistant
	clock ClockService
	log   *log.Logger
}

func NewRouter(ha *HomeAssistant, clock ClockService, logger *log.Logger) *Router {
	return &Router{ha: ha, clock: clock, log: logger}
}

// Start subscribes to the command topics.
func (r *Router) Start() error {
	topics := r.ha.mqtt.Topics()
	if err := r.ha.mqtt.Subscribe(topics.CommandFilter(), r.HandleCommand); err != nil {
		return err
	}
	return r.ha.mqtt.Subscribe(topics.SetDateTime(), r.HandleSetDateTime)
}

func (r *Router) HandleCommand(topic string, payload []byte) {
	panelID, platform, objectID, ok := r.ha.mqtt.Topics().ParseCommand(topic)
	if !ok {
		r.log.Warning("Received message on unknown topic: %s", topic)
		return
	}
	e, ok := r.ha.Lookup(panelID, platform, objectID)
	if !ok {
		r.log.Warning("No entity for command topic %s", topic)
		return
	}
	c, ok := e.(entity.Commandable)
	if !ok {
		r.log.Warning("Entity %s does not take commands", e.UniqueID())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := c.HandleCommand(ctx, payload); err != nil {
		r.log.Error("Command for %s failed: %v", e.UniqueID(), err)
	}
}

func (r *Router) HandleSetDateTime(topic string, payload []byte) {
	targets, when, err := ParseSetDateTime(payload)
	if err != nil {
		r.log.Error("Invalid set_date_time request: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := r.clock.SetPanelClock(ctx, targets, when); err != nil {
		r.log.Error("Failed to set panel clock: %v", err)
	}
}

// ParseSetDateTime accepts an empty payload (all panels, now) or a JSON
// SetDateTimeRequest with an RFC 3339 datetime.
func ParseSetDateTime(payload []byte) ([]string, *time.Time, error) {
	if strings.TrimSpace(string(payload)) == "" {
		return nil, nil, nil
	}
	var req SetDateTimeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, fmt.Errorf("decoding payload: %w", err)
	}
	if req.DateTime == "" {
		return req.Targets, nil, nil
	}
	t, err := time.Parse(time.RFC3339, req.DateTime)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid datetime %q: %w", req.DateTime, err)
	}
	return req.Targets, &t, nil
}
