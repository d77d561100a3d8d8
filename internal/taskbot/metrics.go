package taskbot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/taskbot/internal/logfields"
)

const metricNamespace = "taskbot"

const (
	eventsMetricName       = "events_total"
	tasksCreatedMetricName = "tasks_created_total"
)

const outcomeLabel = "outcome"

type metricCollector struct {
	logger       *zap.Logger
	events       *prometheus.CounterVec
	tasksCreated prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      eventsMetricName,
				Help:      "count of processed bitbucket webhook events",
			},
			[]string{outcomeLabel},
		),
		tasksCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      tasksCreatedMetricName,
				Help:      "count of created pull request tasks",
			},
		),
	}
}

func (m *metricCollector) EventProcessedInc(outcome Outcome) {
	cnt, err := m.events.GetMetricWith(prometheus.Labels{outcomeLabel: outcome.String()})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", eventsMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) TaskCreatedInc() {
	m.tasksCreated.Inc()
}
