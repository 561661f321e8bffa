package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	MessagesSubmitted prometheus.Counter
	MessagesPublished prometheus.Counter
	MessagesExpired   prometheus.Counter
	PublishFailures   prometheus.Counter
	SchedulerCycles   prometheus.Histogram
	RevealsRequested  prometheus.Counter
	RevealsConfirmed  prometheus.Counter
	RevealsDenied     prometheus.Counter
	RepliesRelayed    prometheus.Counter
	ReportsFiled      prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		MessagesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_messages_submitted_total",
			Help: "Anonymous messages accepted into the pending queue",
		}),
		MessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_messages_published_total",
			Help: "Messages posted to the shared channel",
		}),
		MessagesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_messages_expired_total",
			Help: "Messages expired by age or by the report threshold",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_publish_failures_total",
			Help: "Channel posts that failed and were left for the next cycle",
		}),
		SchedulerCycles: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "correio_scheduler_cycle_duration_seconds",
			Help:    "Duration of one publication cycle",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		RevealsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_reveals_requested_total",
			Help: "Paid reveal requests opened",
		}),
		RevealsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_reveals_confirmed_total",
			Help: "Reveal payments confirmed by the approver",
		}),
		RevealsDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_reveals_denied_total",
			Help: "Reveal payments denied by the approver",
		}),
		RepliesRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_replies_relayed_total",
			Help: "Anonymous replies stored and relayed to original senders",
		}),
		ReportsFiled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "correio_reports_filed_total",
			Help: "Denunciations filed against published messages",
		}),
	}
}
