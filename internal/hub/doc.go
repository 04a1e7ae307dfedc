// Package hub owns the per-hub control sessions and their cached state.
//
// A Manager reacts to discovery events by dialing a hub and registering a
// Session under the hub's slug. Each Session keeps three caches (activities,
// devices, current state) refreshed by independent timers, detects activity
// transitions and reports them to a Notifier. Commands arriving from HTTP or
// MQTT are resolved by slug and dispatched through the Manager.
//
// # Lifecycle
//
//	online  -> Dial -> Session.Start (initial activities refresh, arm timers)
//	offline -> Registry.Remove -> Session.Stop (cancel timers, close client)
//
// Re-registering a slug cancels the previous session's timers before the
// new session becomes visible.
//
// # Thread Safety
//
// Sessions guard their caches with a RWMutex and serialize refreshes of
// the same kind. The Registry never holds its lock across a hub call.
package hub
