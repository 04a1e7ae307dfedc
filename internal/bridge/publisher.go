package bridge

import (
	"github.com/maddox/harmony-api/internal/hub"
)

// State payloads.
const (
	StateOn  = "on"
	StateOff = "off"
)

func onOff(on bool) string {
	if on {
		return StateOn
	}
	return StateOff
}

// StateChanged implements hub.Notifier. It publishes, retained:
//
//	{ns}/hubs/{hub}/current_activity             activity slug or "off"
//	{ns}/hubs/{hub}/state                        "on" or "off"
//	{ns}/hubs/{hub}/activities/{activity}/state  "on" or "off", for every activity
//
// Publish failures are logged; the remaining topics are still published.
func (b *Bridge) StateChanged(t hub.Transition) {
	b.publish(b.topics.HubCurrentActivity(t.Hub), t.CurrentSlug())
	b.publish(b.topics.HubState(t.Hub), onOff(!t.State.Off))

	for _, a := range t.Activities {
		b.publish(b.topics.ActivityState(t.Hub, a.Slug), onOff(t.ActivityOn(a.ID)))
	}

	b.log().Debug("published state", "hub", t.Hub, "current_activity", t.CurrentSlug())
}

func (b *Bridge) publish(topic, payload string) {
	if err := b.mqtt.Publish(topic, []byte(payload), b.qos, true); err != nil {
		b.log().Warn("publish failed", "topic", topic, "error", err)
	}
}
