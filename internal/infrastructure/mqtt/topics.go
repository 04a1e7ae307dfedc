package mqtt

import (
	"fmt"
	"strings"
)

// DefaultNamespace is the topic prefix used when none is configured.
const DefaultNamespace = "harmony-api"

// Topics builds the gateway's MQTT topics under a namespace.
//
// Topic tree:
//
//	{ns}/status                                      gateway online/offline (retained)
//	{ns}/hubs/{hub}/current_activity                 activity slug or "off" (retained)
//	{ns}/hubs/{hub}/state                            "on" or "off" (retained)
//	{ns}/hubs/{hub}/activities/{activity}/state      "on" or "off" (retained)
//	{ns}/hubs/{hub}/activities/{activity}/command    inbound "on"/"off"
//	{ns}/hubs/{hub}/devices/{device}/command         inbound "{command}[:{repeat}]"
//	{ns}/hubs/{hub}/command                          inbound "{command}[:{repeat}]"
type Topics struct {
	Namespace string
}

// NewTopics returns a Topics for ns, falling back to DefaultNamespace.
func NewTopics(ns string) Topics {
	ns = strings.Trim(ns, "/")
	if ns == "" {
		ns = DefaultNamespace
	}
	return Topics{Namespace: ns}
}

func (t Topics) hub(hub string) string {
	return fmt.Sprintf("%s/hubs/%s", t.Namespace, hub)
}

// Status is the gateway availability topic.
func (t Topics) Status() string {
	return t.Namespace + "/status"
}

// HubCurrentActivity carries the current activity slug or "off".
func (t Topics) HubCurrentActivity(hub string) string {
	return t.hub(hub) + "/current_activity"
}

// HubState carries "on" or "off" for the whole hub.
func (t Topics) HubState(hub string) string {
	return t.hub(hub) + "/state"
}

// ActivityState carries "on" or "off" for one activity.
func (t Topics) ActivityState(hub, activity string) string {
	return fmt.Sprintf("%s/activities/%s/state", t.hub(hub), activity)
}

// ActivityCommand is the inbound topic that starts or stops an activity.
func (t Topics) ActivityCommand(hub, activity string) string {
	return fmt.Sprintf("%s/activities/%s/command", t.hub(hub), activity)
}

// DeviceCommand is the inbound topic that sends a device command.
func (t Topics) DeviceCommand(hub, device string) string {
	return fmt.Sprintf("%s/devices/%s/command", t.hub(hub), device)
}

// HubCommand is the inbound topic that sends a current-activity command.
func (t Topics) HubCommand(hub string) string {
	return t.hub(hub) + "/command"
}

// AllActivityCommands matches ActivityCommand for every hub and activity.
func (t Topics) AllActivityCommands() string {
	return t.ActivityCommand("+", "+")
}

// AllDeviceCommands matches DeviceCommand for every hub and device.
func (t Topics) AllDeviceCommands() string {
	return t.DeviceCommand("+", "+")
}

// AllHubCommands matches HubCommand for every hub.
func (t Topics) AllHubCommands() string {
	return t.HubCommand("+")
}

// CommandKind identifies which inbound command tree a topic belongs to.
type CommandKind string

// Inbound command kinds.
const (
	CommandActivity CommandKind = "activity"
	CommandDevice   CommandKind = "device"
	CommandCurrent  CommandKind = "current"
)

// CommandTopic is a parsed inbound command topic.
type CommandTopic struct {
	Kind   CommandKind
	Hub    string
	Target string // activity or device slug; empty for CommandCurrent
}

// ParseCommandTopic splits an inbound command topic into its parts.
//
// Returns:
//   - CommandTopic: Kind, hub slug and target slug
//   - error: ErrUnknownTopic for anything outside the command tree
func (t Topics) ParseCommandTopic(topic string) (CommandTopic, error) {
	rest, ok := strings.CutPrefix(topic, t.Namespace+"/hubs/")
	if !ok {
		return CommandTopic{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	parts := strings.Split(rest, "/")
	for _, p := range parts {
		if p == "" {
			return CommandTopic{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
		}
	}

	switch {
	case len(parts) == 2 && parts[1] == "command":
		return CommandTopic{Kind: CommandCurrent, Hub: parts[0]}, nil
	case len(parts) == 4 && parts[1] == "activities" && parts[3] == "command":
		return CommandTopic{Kind: CommandActivity, Hub: parts[0], Target: parts[2]}, nil
	case len(parts) == 4 && parts[1] == "devices" && parts[3] == "command":
		return CommandTopic{Kind: CommandDevice, Hub: parts[0], Target: parts[2]}, nil
	}
	return CommandTopic{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}
