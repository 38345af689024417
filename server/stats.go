// Logic related to prometheus metrics: live hub counts, command outcomes,
// stored messages and invite redemptions.

package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/hubchat/chat/server/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hubchat"

// Request latency distribution bounds (in seconds).
var requestLatencyDistribution = []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}

var (
	statsCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Hub commands processed, by operation and result.",
	}, []string{"op", "result"})

	statsCommandLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Time spent executing hub commands.",
		Buckets:   requestLatencyDistribution,
	}, []string{"op"})

	statsBusyRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "busy_rejections_total",
		Help:      "Commands rejected because the hub queue was full.",
	})

	statsLiveHubs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hubs_live_count",
		Help:      "Hubs currently loaded in memory.",
	})

	statsLiveSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_subscribers_count",
		Help:      "Open live feed subscriptions.",
	})

	statsMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Messages persisted.",
	})

	statsRedemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invite_redemptions_total",
		Help:      "Invite redemption attempts, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(statsCommands, statsCommandLatency, statsBusyRejections,
		statsLiveHubs, statsLiveSubscribers, statsMessages, statsRedemptions)
}

// statsInit exposes metrics at the given path.
func statsInit(mux interface {
	Handle(pattern string, h http.Handler)
}, path string) {
	if path == "" || path == "-" {
		return
	}

	mux.Handle(path, promhttp.Handler())
	logs.Info.Printf("stats: metrics exposed at '%s'", path)
}

// statsCommand records the outcome of a hub command.
func statsCommand(op string, err error, started time.Time) {
	statsCommands.WithLabelValues(op, errorCode(err)).Inc()
	statsCommandLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// statsRegisterDb publishes database connection pool stats, if the adapter reports them.
func statsRegisterDb(stats func() any) {
	if stats == nil {
		return
	}
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_open_connections",
		Help:      "Open database connections.",
	}, func() float64 {
		switch s := stats().(type) {
		case sql.DBStats:
			return float64(s.OpenConnections)
		case interface{ TotalConns() int32 }:
			return float64(s.TotalConns())
		case map[string]any:
			if n, ok := s["InUse"].(int); ok {
				return float64(n)
			}
		}
		return 0
	}))
}
