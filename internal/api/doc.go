// Package api serves the gateway's HTTP REST API and browser WebSocket.
//
// Every route except /_ping and /ws answers 500 no_hub_available until at
// least one hub session is registered. Hubs, activities, devices and
// commands are addressed by slug:
//
//	GET  /hubs
//	GET  /hubs/{hub}/status
//	GET  /hubs/{hub}/activities
//	POST /hubs/{hub}/activities/{activity}
//	POST /hubs/{hub}/devices/{device}/commands/{command}?repeat=N
//	PUT  /hubs/{hub}/off
//
// Unknown slugs answer 404 not_found; failed hub calls answer 502
// upstream_error. Successful commands answer {"message":"ok"}.
//
// The unprefixed /activities, /status, /off and /start_activity routes act
// on the default hub, the one with the lowest slug.
//
// EventHub pushes "hub.state_changed" events to WebSocket clients.
package api
