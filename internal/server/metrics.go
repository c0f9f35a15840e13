package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paperbot_events_total",
	Help: "Webhook deliveries received, by gate decision",
}, []string{"decision"})
