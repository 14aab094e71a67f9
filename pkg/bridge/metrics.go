package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bindingsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dvrk_bridge_bindings_registered",
		Help: "Number of topic-to-command bindings registered.",
	})

	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvrk_bridge_messages_received_total",
		Help: "Messages received and converted per binding.",
	}, []string{"interface", "command"})

	conversionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dvrk_bridge_conversion_errors_total",
		Help: "Payload conversion failures per binding.",
	}, []string{"interface", "command"})
)
