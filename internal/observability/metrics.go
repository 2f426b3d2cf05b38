// Package observability holds the Prometheus collectors of the rewards engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wodgachi"

var (
	// Registry holds the application collectors plus the Go and process collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	workoutsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "core",
		Name:      "workouts_submitted_total",
		Help:      "Workout submissions by outcome (rewarded, rejected).",
	}, []string{"outcome"})

	crushMinted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "crush_minted_total",
		Help:      "Whole CRUSH minted, by reason (workout, admin).",
	}, []string{"reason"})

	nftsMinted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "nft",
		Name:      "minted_total",
		Help:      "Milestone NFTs minted, labeled by milestone.",
	}, []string{"milestone"})

	redemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rewards",
		Name:      "redemptions_total",
		Help:      "Rewards store redemptions by reward and payment method.",
	}, []string{"reward", "method"})

	oracleVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "verifications_total",
		Help:      "Oracle verification results consumed by the core registry.",
	}, []string{"result"})

	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events delivered to Kafka.",
	}, []string{"type"})

	eventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "failed_total",
		Help:      "Domain events that could not be delivered.",
	}, []string{"type"})

	eventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Domain events dropped because the publish buffer was full.",
	}, []string{"type"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight, httpRequests, httpDuration,
		workoutsSubmitted, crushMinted, nftsMinted, redemptions, oracleVerifications,
		eventsPublished, eventsFailed, eventsDropped,
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func RecordWorkout(rewarded bool) {
	outcome := "rejected"
	if rewarded {
		outcome = "rewarded"
	}
	workoutsSubmitted.WithLabelValues(outcome).Inc()
}

func RecordMint(reason string, whole int64) {
	if whole <= 0 {
		return
	}
	crushMinted.WithLabelValues(reason).Add(float64(whole))
}

func RecordNFTMinted(milestone int) {
	nftsMinted.WithLabelValues(strconv.Itoa(milestone)).Inc()
}

func RecordRedemption(rewardID, method string) {
	redemptions.WithLabelValues(rewardID, method).Inc()
}

// RecordVerification labels a consumed oracle result as verified, failed or absent.
func RecordVerification(result string) {
	oracleVerifications.WithLabelValues(result).Inc()
}

func RecordEventPublished(eventType string) { eventsPublished.WithLabelValues(eventType).Inc() }
func RecordEventFailed(eventType string)    { eventsFailed.WithLabelValues(eventType).Inc() }
func RecordEventDropped(eventType string)   { eventsDropped.WithLabelValues(eventType).Inc() }
