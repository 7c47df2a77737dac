/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package pending

import "github.com/prometheus/client_golang/prometheus"

var (
	enqueuedJobs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "pending",
			Name:      "enqueued_jobs",
			Help:      "The total number of jobs appended to a worker queue.",
		},
	)
	processedJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "pending",
			Name:      "processed_jobs",
			Help:      "The total number of jobs processed by the pool workers.",
		},
		[]string{"type"},
	)
	recoveredPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jabberwock",
			Subsystem: "pending",
			Name:      "recovered_panics",
			Help:      "The total number of jobs that panicked while being processed.",
		},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jabberwock",
			Subsystem: "pending",
			Name:      "queue_depth",
			Help:      "The current number of jobs waiting on the pool queues.",
		},
	)
)

func init() {
	prometheus.MustRegister(enqueuedJobs)
	prometheus.MustRegister(processedJobs)
	prometheus.MustRegister(recoveredPanics)
	prometheus.MustRegister(queueDepth)
}
