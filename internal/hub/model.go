package hub

import (
	"time"

	"github.com/maddox/harmony-api/internal/harmony"
)

// OffActivityID is the pseudo-activity the hub reports when it is off.
const OffActivityID = harmony.OffActivityID

// Command is a button of an activity or device.
// Action is the hub payload and never leaves this package; use View.
type Command struct {
	Name   string
	Slug   string
	Label  string
	Action string
}

// GetSlug implements slug.Slugged.
func (c Command) GetSlug() string { return c.Slug }

// View returns the public projection of the command.
func (c Command) View() CommandView {
	return CommandView{Name: c.Name, Slug: c.Slug, Label: c.Label}
}

// CommandView is the public form of a Command.
type CommandView struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

// Activity is a cached hub activity with its commands.
type Activity struct {
	ID           string
	Slug         string
	Label        string
	IsAVActivity bool
	Commands     []Command
}

// GetSlug implements slug.Slugged.
func (a Activity) GetSlug() string { return a.Slug }

// View returns the public projection of the activity.
func (a Activity) View() ActivityView {
	return ActivityView{ID: a.ID, Slug: a.Slug, Label: a.Label, IsAVActivity: a.IsAVActivity}
}

// ActivityView is the public form of an Activity.
type ActivityView struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Label        string `json:"label"`
	IsAVActivity bool   `json:"isAVActivity"`
}

// Device is a cached hub device with its commands.
type Device struct {
	ID       string
	Slug     string
	Label    string
	Commands []Command
}

// GetSlug implements slug.Slugged.
func (d Device) GetSlug() string { return d.Slug }

// View returns the public projection of the device.
func (d Device) View() DeviceView {
	return DeviceView{ID: d.ID, Slug: d.Slug, Label: d.Label}
}

// DeviceView is the public form of a Device.
type DeviceView struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

// HubState is the observed power state of a hub.
// The zero value of a fresh session reads as off with no activity.
type HubState struct {
	Off             bool          `json:"off"`
	CurrentActivity *ActivityView `json:"current_activity,omitempty"`
}

// activityID returns the id of the current activity, or OffActivityID.
func (st HubState) activityID() string {
	if st.Off || st.CurrentActivity == nil {
		return OffActivityID
	}
	return st.CurrentActivity.ID
}

// HubView describes a registered hub.
type HubView struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	IP          string    `json:"ip"`
	RemoteID    string    `json:"remote_id,omitempty"`
	UUID        string    `json:"uuid,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	State       HubState  `json:"state"`

	// Refresh reports the three refresh timers keyed by kind.
	Refresh map[string]RefreshStatus `json:"refresh,omitempty"`
}

// Transition describes one detected change of current activity.
type Transition struct {
	Hub        string
	PreviousID string
	CurrentID  string
	State      HubState

	// Activities is the activity catalog at the time of the change.
	Activities []ActivityView

	At time.Time
}

// ActivityOn reports whether activityID is the running activity after the transition.
func (t Transition) ActivityOn(activityID string) bool {
	return activityID == t.CurrentID
}

// CurrentSlug returns the running activity slug, or "off".
func (t Transition) CurrentSlug() string {
	if t.State.Off || t.State.CurrentActivity == nil {
		return "off"
	}
	return t.State.CurrentActivity.Slug
}

// TargetKind selects what a command is dispatched against.
type TargetKind int

// Target kinds.
const (
	TargetActivity TargetKind = iota
	TargetDevice
	TargetCurrentActivity
)

func (k TargetKind) String() string {
	switch k {
	case TargetActivity:
		return "activity"
	case TargetDevice:
		return "device"
	case TargetCurrentActivity:
		return "current_activity"
	default:
		return "unknown"
	}
}

// Target names the activity or device a command belongs to.
// Slug is ignored for TargetCurrentActivity.
type Target struct {
	Kind TargetKind
	Slug string
}
