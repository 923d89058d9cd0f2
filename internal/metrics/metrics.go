// Package metrics exposes Prometheus counters for download entitlements.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results used as the "result" label.
const (
	ResultServed       = "served"
	ResultInvalid      = "invalid"
	ResultExpired      = "expired"
	ResultLimitReached = "limit_reached"
	ResultError        = "error"
	ResultIssued       = "issued"
	ResultSkipped      = "skipped"
)

var (
	EntitlementsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "entitlements_issued_total",
		Help:      "Digital download records created by entitlement issuance.",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "entitlement_notifications_failed_total",
		Help:      "Delivery emails that could not be sent after issuance.",
	})

	DownloadsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "downloads_served_total",
		Help:      "Download attempts by outcome.",
	}, []string{"result"})

	TokensRegenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "tokens_regenerated_total",
		Help:      "Download tokens replaced through regeneration.",
	})

	BackfillOrders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "backfill_orders_total",
		Help:      "Orders visited by the entitlement backfill, by outcome.",
	}, []string{"result"})
)
