/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package c2s

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "c2s",
			Name:      "connection_registered",
			Help:      "The total number of client connection register operations.",
		},
	)
	connectionUnregistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "c2s",
			Name:      "connection_unregistered",
			Help:      "The total number of client connection unregister operations.",
		},
	)
)

func init() {
	prometheus.MustRegister(connectionRegistered)
	prometheus.MustRegister(connectionUnregistered)
}
