// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShomaShirai/Ito-game/logger"
)

// Prometheus指标
var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ito_rooms_active",
		Help: "Number of rooms currently open.",
	})

	PlayersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ito_players_online",
		Help: "Number of connected player sessions.",
	})

	RoundsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ito_rounds_started_total",
		Help: "Total game rounds started.",
	})

	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ito_feed_events_total",
		Help: "Change feed events observed, by table and action.",
	}, []string{"table", "action"})

	ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ito_action_duration_seconds",
		Help:    "Latency of client actions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)

var startTime = time.Now()

func init() {
	expvar.Publish("uptime_seconds", expvar.Func(func() interface{} {
		return time.Since(startTime).Seconds()
	}))
}

// ObserveAction records one action's latency from its start time.
func ObserveAction(action string, start time.Time) {
	ActionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}

// StartServer exposes /metrics and /debug/vars on addr.
func StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/vars", expvar.Handler())

	go func() {
		logger.Log.Infof("monitor server listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Errorf("monitor server: %v", err)
		}
	}()
}
