package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceMetric writes a single device measurement to InfluxDB.
//
// This is the primary method for recording lockbox telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "box-a1b2c3d4")
//   - measurement: The metric name (e.g., "battery_pct", "temp_c")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteDeviceMetric("box-a1b2c3d4", "battery_pct", 82.5)
//	client.WriteDeviceMetric("box-a1b2c3d4", "temp_c", 4.0)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_metrics",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeliveryEvent records a completed delivery against a device.
//
// Deliveries are low-frequency counter events; each point carries a
// count of 1 so dashboards can sum per device over time windows.
//
// Parameters:
//   - deviceID: Device identifier
//   - codeID: The redeemed access code's ID
func (c *Client) WriteDeliveryEvent(deviceID, codeID string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"deliveries",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"count":   1,
			"code_id": codeID,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
