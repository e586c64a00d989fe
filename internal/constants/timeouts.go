package constants

import "time"

// Shared duration vocabulary used by timeouts and probes.
// Keep these centralized to simplify system-wide timing tuning.
const (
	Duration1Second   = 1 * time.Second
	Duration5Seconds  = 5 * time.Second
	Duration10Seconds = 10 * time.Second
	Duration30Seconds = 30 * time.Second
)

// Domain-level timeout constants.
const (
	RESTDefaultTimeout = Duration30Seconds

	RPCDefaultTimeout       = Duration30Seconds
	RPCMinConnectTimeout    = Duration5Seconds
	RPCProbeTimeout         = Duration5Seconds
	RPCEndpointProbeTimeout = Duration5Seconds
	RPCReleaseGrace         = Duration5Seconds
	RPCKeepaliveTime        = Duration30Seconds
	RPCKeepaliveTimeout     = Duration5Seconds
	RPCConnectivityWait     = Duration1Second

	ServerReadHeaderTimeout = Duration10Seconds
	ServerShutdownTimeout   = Duration10Seconds
	StatusStreamInterval    = Duration10Seconds
	WebSocketWriteTimeout   = Duration5Seconds
)

// Size limits.
const (
	RPCMaxInboundMessageSize = 4 << 20
	MaxErrorBody             = 8 << 10
	MaxResponseBody          = 16 << 20
	MaxRequestBody           = 1 << 20
)
