package metrics

import "errors"

// Sentinel errors for the optional InfluxDB sink.
var (
	ErrNotConnected     = errors.New("metrics: not connected")
	ErrConnectionFailed = errors.New("metrics: connection failed")
	ErrDisabled         = errors.New("metrics: disabled in configuration")
)
