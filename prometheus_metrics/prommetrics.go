package prometheus_metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultPort = "9747"

var labelNames = []string{"position", "source", "destination", "schedule"}

type PrometheusMetrics struct {
	BackupsCurrentlyRunningGauge  *prometheus.GaugeVec
	BackupsExecCounter            *prometheus.CounterVec
	BackupsSuccessCounter         *prometheus.CounterVec
	BackupsFailCounter            *prometheus.CounterVec
	BackupsSourceMissingCounter   *prometheus.CounterVec
	BackupsExecutionTimeHistogram *prometheus.HistogramVec
	listenAddr                    string
	gatherer                      prometheus.Gatherer
	srv                           *http.Server
}

func New(promListenAddr string) *PrometheusMetrics {
	return NewWithRegistry(promListenAddr, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func NewWithRegistry(promListenAddr string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *PrometheusMetrics {
	pm := PrometheusMetrics{}

	pm.listenAddr = promListenAddr
	pm.gatherer = gatherer

	pm.BackupsCurrentlyRunningGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "superbackup_currently_running",
			Help: "count of currently running backups",
		},
		labelNames,
	)
	registerer.MustRegister(pm.BackupsCurrentlyRunningGauge)

	pm.BackupsExecCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superbackup_executions",
			Help: "count of backup executions",
		},
		labelNames,
	)
	registerer.MustRegister(pm.BackupsExecCounter)

	pm.BackupsSuccessCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superbackup_successful_executions",
			Help: "count of successful backup executions",
		},
		labelNames,
	)
	registerer.MustRegister(pm.BackupsSuccessCounter)

	pm.BackupsFailCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superbackup_failed_executions",
			Help: "count of failed backup executions",
		},
		labelNames,
	)
	registerer.MustRegister(pm.BackupsFailCounter)

	pm.BackupsSourceMissingCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superbackup_skipped_source_missing",
			Help: "count of backups skipped because the source did not exist",
		},
		labelNames,
	)
	registerer.MustRegister(pm.BackupsSourceMissingCounter)

	pm.BackupsExecutionTimeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "superbackup_execution_time_seconds",
			Help:    "execution times of the backups in buckets",
			Buckets: []float64{1.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0, 3600.0},
		},
		labelNames,
	)
	registerer.MustRegister(pm.BackupsExecutionTimeHistogram)

	return &pm
}

func (p *PrometheusMetrics) Reset() {
	p.BackupsCurrentlyRunningGauge.Reset()
	p.BackupsExecCounter.Reset()
	p.BackupsSuccessCounter.Reset()
	p.BackupsFailCounter.Reset()
	p.BackupsSourceMissingCounter.Reset()
	p.BackupsExecutionTimeHistogram.Reset()
}

// getAddr fills in DefaultPort when addr has no port.
func getAddr(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("empty listen address")
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}

	host := addr
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	if host == "" || strings.ContainsAny(host, "[]") {
		return "", fmt.Errorf("invalid listen address: %s", addr)
	}

	return net.JoinHostPort(host, DefaultPort), nil
}

func (p *PrometheusMetrics) InitHTTPServer() error {
	addr, err := getAddr(p.listenAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
             <head><title>Superbackup</title></head>
             <body>
             <h1>Superbackup</h1>
             <p><a href='/metrics'>Metrics</a></p>
             </body>
             </html>`))
	})

	p.srv = &http.Server{Addr: addr, Handler: mux}
	return p.srv.ListenAndServe()
}

func (p *PrometheusMetrics) ShutdownHTTPServer(c context.Context) error {
	if p.srv == nil {
		return nil
	}
	return p.srv.Shutdown(c)
}
