package realtime

import "errors"

var (
	// ErrBrokerClosed is returned when subscribing to a closed broker
	ErrBrokerClosed = errors.New("realtime broker is closed")
	// ErrBridgeClosed is returned when registering on a closed bridge
	ErrBridgeClosed = errors.New("realtime bridge is closed")
)
