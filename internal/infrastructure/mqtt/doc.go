// Package mqtt publishes panel telemetry to an MQTT broker.
//
// The client is a thin wrapper over paho.mqtt.golang: it connects with a
// Last Will and Testament on the panel's status topic so subscribers see
// the panel drop offline, publishes JSON events (dispatch outcomes, entity
// staleness transitions) and reconnects automatically. Telemetry is
// optional and strictly best effort; a broker outage never touches the
// control loop.
package mqtt
