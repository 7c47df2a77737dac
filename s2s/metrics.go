/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package s2s

import "github.com/prometheus/client_golang/prometheus"

var (
	inConnectionRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "s2s",
			Name:      "incoming_connection_registered",
			Help:      "The total number of incoming connection register operations.",
		},
	)
	inConnectionUnregistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "s2s",
			Name:      "incoming_connection_unregistered",
			Help:      "The total number of incoming connection unregister operations.",
		},
	)
	outConnectionRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "s2s",
			Name:      "outgoing_connection_registered",
			Help:      "The total number of outgoing connection register operations.",
		},
		[]string{"type"},
	)
	outConnectionUnregistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "s2s",
			Name:      "outgoing_connection_unregistered",
			Help:      "The total number of outgoing connection unregister operations.",
		},
		[]string{"type"},
	)
	dialbackVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "s2s",
			Name:      "dialback_verifications",
			Help:      "The total number of completed dialback key verifications.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(inConnectionRegistered)
	prometheus.MustRegister(inConnectionUnregistered)
	prometheus.MustRegister(outConnectionRegistered)
	prometheus.MustRegister(outConnectionUnregistered)
	prometheus.MustRegister(dialbackVerifications)
}

func outConnectionType(dialbackOnly bool) string {
	if dialbackOnly {
		return "dialback"
	}
	return "default"
}
