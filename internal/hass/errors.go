package hass

import "errors"

var (
	// ErrInvalidConfig indicates missing or malformed client configuration.
	ErrInvalidConfig = errors.New("hass: invalid configuration")

	// ErrUnauthorized indicates the access token was rejected.
	ErrUnauthorized = errors.New("hass: unauthorized")

	// ErrEntityNotFound indicates the entity id is unknown to the instance.
	ErrEntityNotFound = errors.New("hass: entity not found")

	// ErrUnexpectedStatus indicates a response status outside the expected
	// set.
	ErrUnexpectedStatus = errors.New("hass: unexpected status")

	// ErrAuthFailed indicates the websocket authentication handshake was
	// refused.
	ErrAuthFailed = errors.New("hass: websocket auth failed")

	// ErrSubscribeFailed indicates the event subscription was refused.
	ErrSubscribeFailed = errors.New("hass: event subscription failed")
)
