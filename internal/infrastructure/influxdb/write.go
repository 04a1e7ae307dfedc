package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementActivity is the measurement activity transitions are written to.
const MeasurementActivity = "hub_activity"

// Transition is the telemetry view of a hub activity change.
type Transition struct {
	Hub          string
	PreviousID   string
	CurrentID    string
	CurrentSlug  string
	CurrentLabel string
	Off          bool
	At           time.Time
}

// WriteActivityTransition queues one hub_activity point, tagged by hub and
// activity slug. Points are dropped silently after Close.
func (c *Client) WriteActivityTransition(t Transition) {
	if !c.IsConnected() {
		return
	}

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	on := 1
	if t.Off {
		on = 0
	}

	point := write.NewPoint(MeasurementActivity,
		map[string]string{
			"hub":      t.Hub,
			"activity": t.CurrentSlug,
		},
		map[string]any{
			"activity_id": t.CurrentID,
			"previous_id": t.PreviousID,
			"label":       t.CurrentLabel,
			"on":          on,
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}
