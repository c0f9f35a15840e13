package publish

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var repliesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "paperbot_replies_posted_total",
	Help: "Threaded replies posted successfully",
})
