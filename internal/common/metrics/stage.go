package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taxifare/fareops/internal/traffic"
)

const prefix = "fareops_"

const (
	endpointLabel = "endpoint"
	slotLabel     = "slot"
	modelLabel    = "model"
	scopeLabel    = "scope"
	outcomeLabel  = "outcome"
	stageLabel    = "stage"
)

// StageMetrics collects the metrics of a single pipeline stage. Stages are short lived,
// so metrics are written to a node-exporter textfile rather than scraped.
type StageMetrics struct {
	registry *prometheus.Registry

	trafficWeight  *prometheus.GaugeVec
	modelVersions  *prometheus.GaugeVec
	stageDuration  *prometheus.GaugeVec
	stageSucceeded *prometheus.GaugeVec
}

func NewStageMetrics() *StageMetrics {
	trafficWeight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "endpoint_traffic_percent",
			Help: "Traffic percentage routed to each deployment slot of an endpoint",
		},
		[]string{endpointLabel, slotLabel},
	)
	modelVersions := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "model_versions",
			Help: "Number of model versions kept, deleted or failed to delete by cleanup",
		},
		[]string{modelLabel, scopeLabel, outcomeLabel},
	)
	stageDuration := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "stage_duration_seconds",
			Help: "Wall-clock duration of the last run of a pipeline stage",
		},
		[]string{stageLabel},
	)
	stageSucceeded := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "stage_succeeded",
			Help: "1 if the last run of a pipeline stage succeeded, 0 otherwise",
		},
		[]string{stageLabel},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(trafficWeight, modelVersions, stageDuration, stageSucceeded)
	return &StageMetrics{
		registry:       registry,
		trafficWeight:  trafficWeight,
		modelVersions:  modelVersions,
		stageDuration:  stageDuration,
		stageSucceeded: stageSucceeded,
	}
}

func (m *StageMetrics) RecordTraffic(endpoint string, d traffic.Distribution) {
	for slot, weight := range d {
		m.trafficWeight.WithLabelValues(endpoint, slot).Set(float64(weight))
	}
}

func (m *StageMetrics) RecordRetention(model, scope string, kept, deleted, failed int) {
	m.modelVersions.WithLabelValues(model, scope, "kept").Set(float64(kept))
	m.modelVersions.WithLabelValues(model, scope, "deleted").Set(float64(deleted))
	m.modelVersions.WithLabelValues(model, scope, "failed").Set(float64(failed))
}

func (m *StageMetrics) RecordStage(stage string, duration time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Set(duration.Seconds())
	succeeded := 1.0
	if err != nil {
		succeeded = 0
	}
	m.stageSucceeded.WithLabelValues(stage).Set(succeeded)
}

// WriteToTextfile writes all collected metrics to path. A blank path is a no-op.
func (m *StageMetrics) WriteToTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "error writing metrics to %s", path)
	}
	return nil
}
