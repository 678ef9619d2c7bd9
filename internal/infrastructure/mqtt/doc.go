// Package mqtt provides MQTT client connectivity for BoxBuddy Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// BoxBuddy uses MQTT as the link between the core and lockbox firmware.
// Firmware publishes hardware events (door, battery, temperature,
// connectivity) under boxbuddy/device/{id}/event; the core publishes
// canonical state snapshots, commands and notifications back out on the
// same hierarchy.
//
//	BoxBuddy Core ↔ MQTT Broker ↔ Lockbox Firmware
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to hardware events from every lockbox
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a lock command
//	topic := mqtt.Topics{}.DeviceCommand("box-a1b2c3d4")
//	client.Publish(topic, []byte(`{"locked":true}`), 1, false)
package mqtt
