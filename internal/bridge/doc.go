// Package bridge connects hub sessions to MQTT.
//
// Outbound, Bridge implements hub.Notifier and publishes every activity
// change as retained state topics. Inbound, it subscribes to the command
// topics and turns messages into hub commands:
//
//	{ns}/hubs/{hub}/activities/{activity}/command   "on" | "off"
//	{ns}/hubs/{hub}/devices/{device}/command        "{command}[:{repeat}]"
//	{ns}/hubs/{hub}/command                         "{command}[:{repeat}]"
//
// Messages naming an unknown hub, activity, device or command, and
// malformed payloads, are logged and dropped. Each message is handled on
// its own goroutine, so one unresponsive hub does not delay the others.
package bridge
