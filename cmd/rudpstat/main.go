// Command rudpstat polls a rudpd daemon's Prometheus metrics endpoint at a
// fixed interval and writes every sample as CSV, for offline inspection of
// congestion-window and retransmit behavior over the life of a run.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/kestrel-net/rudp/pkg/logger"
)

// Sample is one (metric, label set, value) observation at a point in time;
// this is the row shape gocsv marshals.
type Sample struct {
	Timestamp string  `csv:"timestamp"`
	Metric    string  `csv:"metric"`
	Labels    string  `csv:"labels"`
	Value     float64 `csv:"value"`
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:9701/metrics", "metrics endpoint to poll")
	interval := flag.Duration("interval", 1*time.Second, "polling interval")
	out := flag.String("out", "", "output CSV file (defaults to stdout)")
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	var samples []*Sample
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info("Polling %s every %s", *addr, *interval)

collect:
	for {
		select {
		case <-ticker.C:
			batch, err := scrape(*addr)
			if err != nil {
				logger.Warn("scrape failed: %v", err)
				continue
			}
			samples = append(samples, batch...)
			logger.Debug("collected %d samples (%d total)", len(batch), len(samples))
		case sig := <-sigChan:
			logger.Warn("received signal: %v, stopping", sig)
			break collect
		}
	}

	if err := writeCSV(samples, *out); err != nil {
		logger.Fatal("writing CSV: %v", err)
	}
	logger.Success("wrote %d samples", len(samples))
}

func scrape(addr string) ([]*Sample, error) {
	resp, err := http.Get(addr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var samples []*Sample

	for name, family := range families {
		for _, m := range family.GetMetric() {
			samples = append(samples, &Sample{
				Timestamp: now,
				Metric:    name,
				Labels:    labelString(m.GetLabel()),
				Value:     metricValue(m),
			})
		}
	}

	return samples, nil
}

func labelString(labels []*dto.LabelPair) string {
	s := ""
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += l.GetName() + "=" + l.GetValue()
	}
	return s
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	default:
		return 0
	}
}

func writeCSV(samples []*Sample, out string) error {
	if out == "" {
		return gocsv.Marshal(samples, os.Stdout)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	return gocsv.Marshal(samples, f)
}
