// Package harmony talks to Logitech Harmony hubs on the local network.
//
// Discovery finds hubs with the reverse-bonjour handshake (UDP broadcast on
// port 5224, hubs call back on TCP 61991). Client is a control session over
// the hub's local WebSocket API on port 8088: it reads the activity and
// device configuration, reports and changes the current activity, and
// sends button presses as hold actions.
//
// Usage:
//
//	c, err := harmony.Dial(ctx, "192.168.1.20", harmony.Options{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	id, err := c.GetCurrentActivity(ctx)
//	err = c.Send(ctx, harmony.CommandHoldAction,
//	    harmony.EncodeHoldAction(fn.Action, harmony.StatusPress))
package harmony
