package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "minichat_live_connections",
	Help: "Currently registered live connections.",
})
