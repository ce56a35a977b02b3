package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds every topic the bridge publishes or listens on below the
// configured prefix. Entity topics are
// <prefix>/<panel>/<platform>/<object>/<leaf>.
type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

func (t *Topics) Prefix() string {
	return t.prefix
}

// Status carries the bridge's own online/offline state and the last will.
func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

// SetDateTime is the panel clock service.
func (t *Topics) SetDateTime() string {
	return fmt.Sprintf("%s/set_date_time", t.prefix)
}

func (t *Topics) entity(panel, platform, object, leaf string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.prefix, panel, platform, object, leaf)
}

func (t *Topics) State(panel, platform, object string) string {
	return t.entity(panel, platform, object, "state")
}

func (t *Topics) Availability(panel, platform, object string) string {
	return t.entity(panel, platform, object, "availability")
}

func (t *Topics) Attributes(panel, platform, object string) string {
	return t.entity(panel, platform, object, "attributes")
}

func (t *Topics) Command(panel, platform, object string) string {
	return t.entity(panel, platform, object, "set")
}

// CommandFilter matches the command topic of every entity.
func (t *Topics) CommandFilter() string {
	return fmt.Sprintf("%s/+/+/+/set", t.prefix)
}

// ParseCommand splits an entity command topic. ok is false for anything
// else.
func (t *Topics) ParseCommand(topic string) (panel, platform, object string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[3] != "set" {
		return "", "", "", false
	}
	for _, p := range parts[:3] {
		if p == "" {
			return "", "", "", false
		}
	}
	return parts[0], parts[1], parts[2], true
}
