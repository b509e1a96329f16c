// Package metrics holds the prometheus collectors for tweetsync.
//
// All collectors are registered on the default registry at init, so
// promhttp.Handler() (mounted at /metrics by the server) exposes them.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsync_sync_runs_total",
		Help: "Total sync passes started",
	})
	SyncErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsync_sync_errors_total",
		Help: "Total sync passes that ended in an error",
	})
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tweetsync_sync_duration_seconds",
		Help:    "Sync pass duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	TweetsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsync_tweets_inserted_total",
		Help: "Tweets stored by sync passes",
	})
	TweetsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsync_tweets_skipped_total",
		Help: "Fetched tweets skipped because they were already stored",
	})
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsync_api_requests_total",
		Help: "Twitter API requests by method and status code",
	}, []string{"method", "status"})
	ApprovalChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetsync_approval_changes_total",
		Help: "Moderation writes by resulting approval state",
	}, []string{"approved"})
	NotifyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetsync_notify_errors_total",
		Help: "Event sink failures after a committed moderation write",
	})
	EventClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tweetsync_event_clients",
		Help: "Connected websocket event subscribers",
	})
)

func init() {
	prometheus.MustRegister(
		SyncRuns, SyncErrors, SyncDuration,
		TweetsInserted, TweetsSkipped,
		APIRequests, ApprovalChanges, NotifyErrors, EventClients,
	)
}

// ObserveSyncDuration records a pass duration.
func ObserveSyncDuration(start time.Time) {
	SyncDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRequest counts one Twitter API call. status 0 means transport failure.
func IncAPIRequest(method string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequests.WithLabelValues(method, label).Inc()
}

// IncApprovalChange counts one moderation write.
func IncApprovalChange(approved bool) {
	ApprovalChanges.WithLabelValues(strconv.FormatBool(approved)).Inc()
}
