package config

import "time"

// Timeout constants used across cmd and the HTTP server.
const (
	TxConfirmTimeout  = 3 * time.Minute  // chain-backed transfer confirmation wait
	ReadHeaderTimeout = 10 * time.Second // HTTP server header read limit
	ShutdownTimeout   = 5 * time.Second  // graceful HTTP shutdown
	SignedRequestTTL  = 5 * time.Minute  // how far a signed API request may lag the clock
)
