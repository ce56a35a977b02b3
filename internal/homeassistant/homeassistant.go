// Package homeassistant presents panel entities to Home Assistant over MQTT:
// discovery configs, retained state and availability, and the command
// topics that come back.
package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/entity"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/mqtt"
)

const unknownState = "None"

// MQTTClient is the part of the MQTT client the platform uses.
type MQTTClient interface {
	Topics() *mqtt.Topics
	Publish(topic string, payload interface{}, retain bool) error
	Retain() bool
	Subscribe(topic string, h mqtt.MessageHandler) error
}

type pending struct {
	entity    entity.Entity
	discovery bool
}

// HomeAssistant keeps the set of live entities. Change notifications only
// queue the entity; Run (or Flush) publishes, so observer callbacks never
// wait on the broker.
type HomeAssistant struct {
	config *config.HomeAssistantConfig
	mqtt   MQTTClient
	log    *log.Logger

	mu       sync.Mutex
	entities map[string]entity.Entity
	queue    map[string]pending
	wake     chan struct{}
}

func New(cfg *config.HomeAssistantConfig, mqttClient MQTTClient, logger *log.Logger) *HomeAssistant {
	return &HomeAssistant{
		config:   cfg,
		mqtt:     mqttClient,
		log:      logger,
		entities: make(map[string]entity.Entity),
		queue:    make(map[string]pending),
		wake:     make(chan struct{}, 1),
	}
}

// AddEntities binds each entity and queues its discovery and state.
// Entities already added are skipped.
func (ha *HomeAssistant) AddEntities(entities ...entity.Entity) error {
	for _, e := range entities {
		ha.mu.Lock()
		if _, dup := ha.entities[e.UniqueID()]; dup {
			ha.mu.Unlock()
			continue
		}
		ha.entities[e.UniqueID()] = e
		ha.mu.Unlock()

		e := e
		if err := e.Added(func() { ha.schedule(e, false) }); err != nil {
			return fmt.Errorf("adding %s: %w", e.UniqueID(), err)
		}
		ha.log.Debug("Added %s %s (%s)", e.Platform(), e.UniqueID(), e.Name())
		ha.schedule(e, true)
	}
	return nil
}

// RemoveEntities unbinds every entity of one panel and marks it offline.
func (ha *HomeAssistant) RemoveEntities(panelID string) {
	ha.mu.Lock()
	var removed []entity.Entity
	for id, e := range ha.entities {
		if e.PanelID() == panelID {
			removed = append(removed, e)
			delete(ha.entities, id)
			delete(ha.queue, id)
		}
	}
	ha.mu.Unlock()

	for _, e := range removed {
		e.Removed()
		ha.publish(ha.availabilityTopic(e), "offline")
	}
}

// RemoveAll unbinds every entity.
func (ha *HomeAssistant) RemoveAll() {
	for _, panelID := range ha.panelIDs() {
		ha.RemoveEntities(panelID)
	}
}

// Lookup finds the entity behind a command topic.
func (ha *HomeAssistant) Lookup(panelID, platform, objectID string) (entity.Entity, bool) {
	ha.mu.Lock()
	defer ha.mu.Unlock()
	e, ok := ha.entities[panelID+"_"+objectID]
	if !ok || string(e.Platform()) != platform || e.PanelID() != panelID {
		return nil, false
	}
	return e, true
}

func (ha *HomeAssistant) Entities() []entity.Entity {
	ha.mu.Lock()
	defer ha.mu.Unlock()
	out := make([]entity.Entity, 0, len(ha.entities))
	for _, e := range ha.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID() < out[j].UniqueID() })
	return out
}

// Republish queues discovery and state for everything, e.g. after the
// broker connection comes back.
func (ha *HomeAssistant) Republish() {
	for _, e := range ha.Entities() {
		ha.schedule(e, true)
	}
}

// Run publishes queued entities until ctx is done.
func (ha *HomeAssistant) Run(ctx context.Context) {
	ha.log.Info("Starting Home Assistant integration")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ha.wake:
			ha.Flush()
		}
	}
}

// Flush publishes everything queued so far on the calling goroutine.
func (ha *HomeAssistant) Flush() {
	ha.mu.Lock()
	queue := ha.queue
	ha.queue = make(map[string]pending)
	ha.mu.Unlock()

	ids := make([]string, 0, len(queue))
	for id := range queue {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := queue[id]
		if p.discovery {
			ha.publishDiscovery(p.entity)
		}
		ha.publishState(p.entity)
	}
}

func (ha *HomeAssistant) schedule(e entity.Entity, discovery bool) {
	ha.mu.Lock()
	if _, live := ha.entities[e.UniqueID()]; !live {
		ha.mu.Unlock()
		return
	}
	p := ha.queue[e.UniqueID()]
	p.entity = e
	p.discovery = p.discovery || discovery
	ha.queue[e.UniqueID()] = p
	ha.mu.Unlock()

	select {
	case ha.wake <- struct{}{}:
	default:
	}
}

func (ha *HomeAssistant) panelIDs() []string {
	ha.mu.Lock()
	defer ha.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, e := range ha.entities {
		if !seen[e.PanelID()] {
			seen[e.PanelID()] = true
			ids = append(ids, e.PanelID())
		}
	}
	return ids
}

func (ha *HomeAssistant) publishDiscovery(e entity.Entity) {
	if !ha.config.Discovery {
		return
	}
	topics := ha.mqtt.Topics()
	platform := string(e.Platform())

	cfg := map[string]interface{}{
		"name":                  e.Name(),
		"unique_id":             e.UniqueID(),
		"device":                e.Device(),
		"state_topic":           topics.State(e.PanelID(), platform, e.ObjectID()),
		"json_attributes_topic": topics.Attributes(e.PanelID(), platform, e.ObjectID()),
		"availability": []map[string]string{
			{"topic": topics.Status()},
			{"topic": ha.availabilityTopic(e)},
		},
		"availability_mode": "all",
	}
	if _, ok := e.(entity.Commandable); ok {
		cfg["command_topic"] = topics.Command(e.PanelID(), platform, e.ObjectID())
	}
	for k, v := range e.Discovery() {
		cfg[k] = v
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		ha.log.Error("Failed to marshal Home Assistant config: %v", err)
		return
	}
	// Discovery stays retained whatever the state setting, or Home Assistant
	// forgets the entities when it restarts.
	if err := ha.mqtt.Publish(ha.discoveryTopic(e), payload, true); err != nil {
		ha.log.Debug("Not published to %s: %v", ha.discoveryTopic(e), err)
	}
}

func (ha *HomeAssistant) publishState(e entity.Entity) {
	snap := e.Render()
	topics := ha.mqtt.Topics()
	platform := string(e.Platform())

	availability := "offline"
	if snap.Available {
		availability = "online"
	}
	state := snap.State
	if state == "" {
		state = unknownState
	}

	if snap.Attributes != nil {
		ha.publish(topics.Attributes(e.PanelID(), platform, e.ObjectID()), snap.Attributes)
	}
	ha.publish(topics.State(e.PanelID(), platform, e.ObjectID()), state)
	ha.publish(ha.availabilityTopic(e), availability)
}

func (ha *HomeAssistant) publish(topic string, payload interface{}) {
	if err := ha.mqtt.Publish(topic, payload, ha.mqtt.Retain()); err != nil {
		ha.log.Debug("Not published to %s: %v", topic, err)
	}
}

func (ha *HomeAssistant) discoveryTopic(e entity.Entity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", ha.config.Prefix, e.Platform(), e.PanelID(), e.ObjectID())
}

func (ha *HomeAssistant) availabilityTopic(e entity.Entity) string {
	return ha.mqtt.Topics().Availability(e.PanelID(), string(e.Platform()), e.ObjectID())
}
