package bitbucket

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/taskbot/internal/logfields"
)

const metricNamespace = "taskbot_bitbucket"

const (
	requestsMetricName        = "requests_total"
	requestDurationMetricName = "request_duration_seconds"
)

const (
	operationLabel = "operation"
	statusLabel    = "status"
)

type metricCollector struct {
	logger          *zap.Logger
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		requests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      requestsMetricName,
				Help:      "count of bitbucket api requests",
			},
			[]string{operationLabel, statusLabel},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      requestDurationMetricName,
				Help:      "duration of bitbucket api requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{operationLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

// RequestDone records a finished api request.
// status is the http status code or "error" if no response was received.
func (m *metricCollector) RequestDone(op operation, status string, duration time.Duration) {
	cnt, err := m.requests.GetMetricWith(prometheus.Labels{
		operationLabel: string(op),
		statusLabel:    status,
	})
	if err != nil {
		m.logGetMetricFailed(requestsMetricName, err)
	} else {
		cnt.Inc()
	}

	obs, err := m.requestDuration.GetMetricWith(prometheus.Labels{operationLabel: string(op)})
	if err != nil {
		m.logGetMetricFailed(requestDurationMetricName, err)
		return
	}

	obs.Observe(duration.Seconds())
}
