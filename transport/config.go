package transport

// Configuration holds every tunable named in spec.md §6. Defaults below are
// the "recommended" values carried over from the original implementation's
// spo_configuration; config.Load layers a YAML file on top of these.
type Configuration struct {
	ConnectionBufSize uint32 // bytes buffered per connection in each direction
	SocketBufSize     uint32 // OS socket receive/send buffer size

	InitialCwndInPackets            uint32
	CwndOnTimeoutInPackets          uint32
	MinSsthreshInPackets            uint32
	MaxCwndIncOnSlowstartInPackets  uint32
	DuplicateAcksForRetransmit      uint32
	SsthreshFactorOnTimeoutPercent  uint32
	SsthreshFactorOnLossPercent     uint32

	MaxConnections                uint32
	ConnectionTimeoutMillis        uint32
	PingIntervalMillis             uint32
	ConnectRetransmissionTimeoutMillis uint32
	MaxConnectAttempts             uint32
	AcceptRetransmissionTimeoutMillis  uint32
	MaxAcceptedAttempts            uint32
	DataRetransmissionTimeoutMillis   uint32
	SkipPacketsBeforeAcknowledgement  uint32
	MaxConsecutiveAcknowledges      uint32
}

// DefaultConfiguration returns the recommended settings from spec.md §6.
func DefaultConfiguration() Configuration {
	return Configuration{
		ConnectionBufSize: 65536,
		SocketBufSize:     4194304,

		InitialCwndInPackets:               2,
		CwndOnTimeoutInPackets:             2,
		MinSsthreshInPackets:               4,
		MaxCwndIncOnSlowstartInPackets:     50,
		DuplicateAcksForRetransmit:         2,
		SsthreshFactorOnTimeoutPercent:     50,
		SsthreshFactorOnLossPercent:        70,

		MaxConnections:                     500,
		ConnectionTimeoutMillis:            8000,
		PingIntervalMillis:                 1500,
		ConnectRetransmissionTimeoutMillis: 2000,
		MaxConnectAttempts:                 3,
		AcceptRetransmissionTimeoutMillis:  1000,
		MaxAcceptedAttempts:                2,
		DataRetransmissionTimeoutMillis:    600,
		SkipPacketsBeforeAcknowledgement:   0,
		MaxConsecutiveAcknowledges:         10,
	}
}
