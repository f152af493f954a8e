package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrel-net/rudp/config"
	"github.com/kestrel-net/rudp/pkg/logger"
	"github.com/kestrel-net/rudp/transport"
)

const version = "1.0.0"

func main() {
	logger.Banner("RUDP Host Daemon", version)

	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	listenFlag := flag.String("listen", "0.0.0.0:9700", "address to bind unless the config file sets one")
	metricsAddr := flag.String("metrics", "", "address to serve Prometheus metrics on (empty disables it)")
	flag.Parse()

	listen := *listenFlag
	cfg := transport.DefaultConfiguration()

	if *configPath != "" {
		loadedListen, loadedCfg, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("loading config: %v", err)
		}
		if loadedListen != "" {
			listen = loadedListen
		}
		cfg = loadedCfg
	}

	logger.Info("Binding on %s", listen)
	logger.Info("Max connections: %d", cfg.MaxConnections)
	logger.Info("Connection buffer: %d bytes", cfg.ConnectionBufSize)

	addr, err := resolveAddress(listen)
	if err != nil {
		logger.Fatal("resolving listen address: %v", err)
	}

	adapter, err := transport.NewUDPAdapter(addr, int(cfg.SocketBufSize))
	if err != nil {
		logger.Fatal("binding UDP socket: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := transport.NewMetrics(registry)
	if err != nil {
		logger.Fatal("registering metrics: %v", err)
	}

	host := transport.NewHost(adapter, cfg, echoCallbacks(), transport.HostOptions{
		Metrics: metrics,
		Logger:  logger.HostLogger(),
	})

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, registry)
	}

	logger.Success("Host listening on %s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		runLoop(host, done)
		close(stopped)
	}()

	sig := <-sigChan
	logger.Warn("Received signal: %v", sig)
	logger.Info("Shutting down gracefully...")

	close(done)
	<-stopped
	if err := host.CloseHost(); err != nil {
		logger.Error("closing host: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	logger.Success("Host stopped")
}

// runLoop drives host.MakeProgress in a loop, backing off briefly
// whenever a tick did nothing so an idle host doesn't spin a core.
func runLoop(host *transport.Host, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		if !host.MakeProgress() {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// echoCallbacks wires a trivial echo service: anything a connected peer
// sends is read out and queued straight back. It exists to give the
// daemon an observable default behavior rather than to be a real protocol.
func echoCallbacks() transport.Callbacks {
	return transport.Callbacks{
		IncomingConnection: func(conn *transport.Connection) {
			addr, _ := conn.RemoteAddress()
			logger.Info("incoming connection from %s (trace=%s)", addr, conn.TraceID())
		},
		Connected: func(conn *transport.Connection) {
			addr, _ := conn.RemoteAddress()
			logger.Success("connection established with %s (trace=%s)", addr, conn.TraceID())
		},
		UnableToConnect: func(conn *transport.Connection) {
			logger.Warn("unable to connect (trace=%s)", conn.TraceID())
		},
		ConnectionLost: func(conn *transport.Connection) {
			logger.Warn("connection lost (trace=%s)", conn.TraceID())
		},
		IncomingData: func(conn *transport.Connection, bytesReady uint32) {
			buf := make([]byte, bytesReady)
			n := conn.Read(buf)
			if n == 0 {
				return
			}
			conn.Send(buf[:n])
		},
	}
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("Serving metrics on http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server: %v", err)
	}
}

func resolveAddress(listen string) (transport.Address, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return transport.Address{}, err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		if host == "" {
			ip = net.IPv4zero
		} else {
			resolved, err := net.ResolveIPAddr("ip", host)
			if err != nil {
				return transport.Address{}, fmt.Errorf("resolving host %q: %w", host, err)
			}
			ip = resolved.IP
		}
	}

	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return transport.Address{}, fmt.Errorf("parsing port %q: %w", portStr, err)
	}

	return transport.Address{IP: ip, Port: port}, nil
}
