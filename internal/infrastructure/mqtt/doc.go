// Package mqtt provides the gateway's MQTT broker connection.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained publishing of hub state topics
//   - Wildcard subscriptions to inbound command topics, restored on reconnect
//   - Gateway availability on {ns}/status, with "offline" as Last Will
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	client.PublishRetained(topics.HubState("living-room"), "on")
//	client.Subscribe(topics.AllDeviceCommands(), 0, handler)
//
// Delivery is best effort. Publishing failures are returned to the caller,
// which logs them and carries on.
package mqtt
