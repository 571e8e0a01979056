package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Submissions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zooz", Name: "submissions_total", Help: "Activity submissions created",
	})
	RedemptionRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zooz", Name: "redemption_requests_total", Help: "Redemption requests created",
	})
	Reviews = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zooz", Name: "reviews_total", Help: "Completed reviews by entity and decision",
	}, []string{"entity", "decision"})
	ReviewConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zooz", Name: "review_conflicts_total", Help: "Reviews refused because the record was no longer pending",
	}, []string{"entity"})
	TokensCredited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zooz", Name: "tokens_credited_total", Help: "Tokens added to child balances",
	})
	TokensDebited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zooz", Name: "tokens_debited_total", Help: "Tokens removed from child balances",
	})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zooz", Name: "notifications_total", Help: "Notification emits by outcome",
	}, []string{"type", "outcome"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zooz", Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zooz", Name: "websocket_clients", Help: "Connected websocket clients",
	})
)

func init() {
	prometheus.MustRegister(Submissions, RedemptionRequests, Reviews, ReviewConflicts,
		TokensCredited, TokensDebited, Notifications, HTTPDuration, WebsocketClients)
}

func Handler() http.Handler { return promhttp.Handler() }

// ObserveLedger counts a signed ledger amount as credited or debited.
func ObserveLedger(amount int) {
	if amount > 0 {
		TokensCredited.Add(float64(amount))
	} else if amount < 0 {
		TokensDebited.Add(float64(-amount))
	}
}

func ObserveHTTP(method string, status int, d time.Duration) {
	HTTPDuration.WithLabelValues(method, statusClass(status)).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
