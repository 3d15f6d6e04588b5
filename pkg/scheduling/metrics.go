/*
Copyright The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package scheduling

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const metricsSubsystem = "scheduling_decision"

// These mirror alt_scheduler.go's scheduling.DurationSeconds /
// UnschedulablePodsCount / QueueDepth metrics, scoped to this core's own
// passes/queues instead of Karpenter's pod-to-node binding.
var (
	PassDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: metricsSubsystem,
			Name:      "pass_duration_seconds",
			Help:      "Duration of one ConsumeRunningQueue pass.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"policy"},
	)

	// QueueDepth is registered, but no code in this package sets it.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: metricsSubsystem,
			Name:      "queue_depth",
			Help:      "Number of items currently queued, by queue and priority.",
		},
		[]string{"queue", "priority"},
	)

	PreemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "preemptions_total",
			Help:      "Count of preemption decisions, by outcome.",
		},
		[]string{"code"},
	)

	ScheduleResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: metricsSubsystem,
			Name:      "schedule_results_total",
			Help:      "Count of per-instance schedule results, by code.",
		},
		[]string{"code"},
	)
)

func init() {
	metrics.Registry.MustRegister(PassDurationSeconds, QueueDepth, PreemptionsTotal, ScheduleResultsTotal)
}
