package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the Prometheus collector set for one Host. It is optional:
// a Host created without one simply skips every update call.
type Metrics struct {
	connections        *prometheus.GaugeVec
	cwndBytes          *prometheus.GaugeVec
	ssthreshBytes      *prometheus.GaugeVec
	retransmits        prometheus.Counter
	timeouts           prometheus.Counter
	duplicateAcks      prometheus.Counter
	bytesSentTotal     prometheus.Counter
	bytesReceivedTotal prometheus.Counter
}

// NewMetrics registers the host's collectors against reg. Passing the same
// registry for two hosts in the same process will fail to register
// (Prometheus metric names are global), so multi-host processes should use
// separate registries or a shared *Metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rudp_connections",
			Help: "Number of connections currently in each state.",
		}, []string{"state"}),
		cwndBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rudp_cwnd_bytes",
			Help: "Congestion window size of an established connection.",
		}, []string{"connection"}),
		ssthreshBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rudp_ssthresh_bytes",
			Help: "Slow-start threshold of an established connection.",
		}, []string{"connection"}),
		retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rudp_retransmits_total",
			Help: "Packets retransmitted due to loss recovery or RTO.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rudp_timeouts_total",
			Help: "Retransmission timeouts observed.",
		}),
		duplicateAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rudp_duplicate_acks_total",
			Help: "Duplicate acknowledgements observed.",
		}),
		bytesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rudp_bytes_sent_total",
			Help: "Payload bytes handed to the socket.",
		}),
		bytesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rudp_bytes_received_total",
			Help: "Payload bytes accepted into receive buffers.",
		}),
	}

	collectors := []prometheus.Collector{
		m.connections, m.cwndBytes, m.ssthreshBytes, m.retransmits,
		m.timeouts, m.duplicateAcks, m.bytesSentTotal, m.bytesReceivedTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) observeRetransmit() {
	if m == nil {
		return
	}
	m.retransmits.Inc()
}

func (m *Metrics) observeTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

func (m *Metrics) observeDuplicateAck() {
	if m == nil {
		return
	}
	m.duplicateAcks.Inc()
}

func (m *Metrics) observeBytesSent(n uint32) {
	if m == nil {
		return
	}
	m.bytesSentTotal.Add(float64(n))
}

func (m *Metrics) observeBytesReceived(n uint32) {
	if m == nil {
		return
	}
	m.bytesReceivedTotal.Add(float64(n))
}

// refreshConnectionGauges recomputes the per-state connection count and the
// per-connection cwnd/ssthresh gauges from the live connection table. Called
// once per MakeProgress rather than incrementally, since cwnd/ssthresh
// change on almost every packet and incremental bookkeeping would double the
// congestion-control code's surface area for no operational benefit.
//
// cwndBytes/ssthreshBytes are Reset before repopulating so a connection that
// closed since the last tick drops out of both vectors instead of leaving
// its last-known value behind under a trace id nothing will ever update
// again.
func (m *Metrics) refreshConnectionGauges(host *Host) {
	if m == nil {
		return
	}

	counts := map[string]float64{}
	m.cwndBytes.Reset()
	m.ssthreshBytes.Reset()

	for e := host.connections.Front(); e != nil; e = e.Next() {
		conn := e.Value.(*Connection)
		counts[conn.state.String()]++
		if conn.state == StateConnected {
			m.cwndBytes.WithLabelValues(conn.TraceID()).Set(float64(conn.sndCwndBytes))
			m.ssthreshBytes.WithLabelValues(conn.TraceID()).Set(float64(conn.sndSsthreshBytes))
		}
	}

	for _, state := range []ConnState{
		StateInit, StateConnectStarted, StateConnectReceivedWhileStarted,
		StateConnectReceived, StateConnected, StateClosed,
	} {
		m.connections.WithLabelValues(state.String()).Set(counts[state.String()])
	}
}
