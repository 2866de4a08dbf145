// Package services – routing metrics.
//
// Prometheus collectors for routing outcomes. Label cardinality stays
// bounded: direction is one of two values, reason one of a small fixed set,
// tier one of six.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// forwardedTotal counts messages successfully forwarded, by direction
	// ("user_to_responder" or "responder_to_user").
	forwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_forwarded_total",
			Help: "Total number of messages forwarded between users and responders.",
		},
		[]string{"direction"},
	)

	// rejectionsTotal counts user-visible rejections by reason
	// ("rate_limited", "blocked", "unresolved_reply", "transport").
	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rejections_total",
			Help: "Total number of rejected relay attempts by reason.",
		},
		[]string{"reason"},
	)

	// resolverHits counts successful reply resolutions by tier.
	resolverHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_resolver_hits_total",
			Help: "Total number of reply resolutions by resolver tier.",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(forwardedTotal, rejectionsTotal, resolverHits)
}

const (
	directionUserToResponder = "user_to_responder"
	directionResponderToUser = "responder_to_user"

	reasonRateLimited     = "rate_limited"
	reasonBlocked         = "blocked"
	reasonUnresolvedReply = "unresolved_reply"
	reasonTransport       = "transport"
)
