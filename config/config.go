// Package config loads host and network settings for the rudp daemon from
// YAML, layering overrides onto transport.DefaultConfiguration the way a
// deployment would tune congestion-control and timeout knobs without
// touching code.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-net/rudp/transport"
)

// File is the on-disk shape of a rudp config file. Every field except
// Listen is a pointer so an absent key in the YAML leaves the corresponding
// default from transport.DefaultConfiguration untouched.
type File struct {
	Listen string `yaml:"listen"`

	ConnectionBufSize *uint32 `yaml:"connection_buf_size"`
	SocketBufSize     *uint32 `yaml:"socket_buf_size"`

	InitialCwndInPackets           *uint32 `yaml:"initial_cwnd_packets"`
	CwndOnTimeoutInPackets         *uint32 `yaml:"cwnd_on_timeout_packets"`
	MinSsthreshInPackets           *uint32 `yaml:"min_ssthresh_packets"`
	MaxCwndIncOnSlowstartInPackets *uint32 `yaml:"max_cwnd_inc_slowstart_packets"`
	DuplicateAcksForRetransmit     *uint32 `yaml:"duplicate_acks_for_retransmit"`
	SsthreshFactorOnTimeoutPercent *uint32 `yaml:"ssthresh_factor_on_timeout_percent"`
	SsthreshFactorOnLossPercent    *uint32 `yaml:"ssthresh_factor_on_loss_percent"`

	MaxConnections                     *uint32 `yaml:"max_connections"`
	ConnectionTimeoutMillis            *uint32 `yaml:"connection_timeout_millis"`
	PingIntervalMillis                 *uint32 `yaml:"ping_interval_millis"`
	ConnectRetransmissionTimeoutMillis *uint32 `yaml:"connect_retransmission_timeout_millis"`
	MaxConnectAttempts                *uint32 `yaml:"max_connect_attempts"`
	AcceptRetransmissionTimeoutMillis  *uint32 `yaml:"accept_retransmission_timeout_millis"`
	MaxAcceptedAttempts                *uint32 `yaml:"max_accepted_attempts"`
	DataRetransmissionTimeoutMillis    *uint32 `yaml:"data_retransmission_timeout_millis"`
	SkipPacketsBeforeAcknowledgement   *uint32 `yaml:"skip_packets_before_acknowledgement"`
	MaxConsecutiveAcknowledges         *uint32 `yaml:"max_consecutive_acknowledges"`
}

// Load reads and parses a YAML config file at path, returning its listen
// address and a transport.Configuration with every set field layered onto
// transport.DefaultConfiguration.
func Load(path string) (listen string, cfg transport.Configuration, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", transport.Configuration{}, fmt.Errorf("config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", transport.Configuration{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg = transport.DefaultConfiguration()
	applyOverrides(&f, &cfg)
	return f.Listen, cfg, nil
}

func applyOverrides(f *File, cfg *transport.Configuration) {
	set := func(dst *uint32, src *uint32) {
		if src != nil {
			*dst = *src
		}
	}

	set(&cfg.ConnectionBufSize, f.ConnectionBufSize)
	set(&cfg.SocketBufSize, f.SocketBufSize)

	set(&cfg.InitialCwndInPackets, f.InitialCwndInPackets)
	set(&cfg.CwndOnTimeoutInPackets, f.CwndOnTimeoutInPackets)
	set(&cfg.MinSsthreshInPackets, f.MinSsthreshInPackets)
	set(&cfg.MaxCwndIncOnSlowstartInPackets, f.MaxCwndIncOnSlowstartInPackets)
	set(&cfg.DuplicateAcksForRetransmit, f.DuplicateAcksForRetransmit)
	set(&cfg.SsthreshFactorOnTimeoutPercent, f.SsthreshFactorOnTimeoutPercent)
	set(&cfg.SsthreshFactorOnLossPercent, f.SsthreshFactorOnLossPercent)

	set(&cfg.MaxConnections, f.MaxConnections)
	set(&cfg.ConnectionTimeoutMillis, f.ConnectionTimeoutMillis)
	set(&cfg.PingIntervalMillis, f.PingIntervalMillis)
	set(&cfg.ConnectRetransmissionTimeoutMillis, f.ConnectRetransmissionTimeoutMillis)
	set(&cfg.MaxConnectAttempts, f.MaxConnectAttempts)
	set(&cfg.AcceptRetransmissionTimeoutMillis, f.AcceptRetransmissionTimeoutMillis)
	set(&cfg.MaxAcceptedAttempts, f.MaxAcceptedAttempts)
	set(&cfg.DataRetransmissionTimeoutMillis, f.DataRetransmissionTimeoutMillis)
	set(&cfg.SkipPacketsBeforeAcknowledgement, f.SkipPacketsBeforeAcknowledgement)
	set(&cfg.MaxConsecutiveAcknowledges, f.MaxConsecutiveAcknowledges)
}
