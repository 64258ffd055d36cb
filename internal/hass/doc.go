// Package hass talks to a Home Assistant instance.
//
// Client wraps the REST API: it fetches single entity states and invokes
// services on button presses. EventStream maintains a long-lived websocket
// subscription to state_changed events so value changes land between poll
// cycles; it reconnects with a fixed delay and the poller remains the
// source of truth while it is down.
package hass
