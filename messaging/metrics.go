package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minichat_messages_accepted_total",
		Help: "Messages durably stored.",
	})
	messagesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minichat_messages_pushed_total",
		Help: "Messages pushed live to a connected recipient.",
	})
	messagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minichat_messages_failed_total",
		Help: "Messages dropped on storage failure.",
	})
)
