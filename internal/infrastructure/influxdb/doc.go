// Package influxdb records hub activity transitions as InfluxDB points.
//
// Writes go through the non-blocking batched write API of
// influxdb-client-go; asynchronous write errors are delivered to the
// callback set with SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteActivityTransition(influxdb.Transition{Hub: "living-room", ...})
package influxdb
