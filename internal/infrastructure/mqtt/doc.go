// Package mqtt connects the platform to an MQTT broker so that sensors can
// push readings without going through the HTTP API.
//
// Sensors publish JSON readings on {prefix}/measurements/{sensor_id}. The
// client keeps a retained status message on {prefix}/system/status, backed
// by a Last Will so subscribers notice an unclean shutdown.
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllMeasurements(), 1, handle)
package mqtt
