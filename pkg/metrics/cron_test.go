package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m.ObserveRun("payment-ttl", 250*time.Millisecond, finished, nil)
	m.ObserveRun("payment-ttl", time.Second, finished.Add(time.Minute), errors.New("db down"))
	m.AddAffected("payment-ttl", 3)
	m.AddAffected("payment-ttl", 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := family(t, mfs, "storefront_cron_job_runs_total")
	assert.Equal(t, 1.0, sampleValue(runs, map[string]string{"job": "payment-ttl", "outcome": "success"}))
	assert.Equal(t, 1.0, sampleValue(runs, map[string]string{"job": "payment-ttl", "outcome": "failure"}))

	affected := family(t, mfs, "storefront_cron_job_rows_affected_total")
	assert.Equal(t, 3.0, sampleValue(affected, map[string]string{"job": "payment-ttl"}))

	last := family(t, mfs, "storefront_cron_job_last_success_timestamp_seconds")
	assert.Equal(t, float64(finished.Unix()), sampleValue(last, map[string]string{"job": "payment-ttl"}), "a failed run does not move the timestamp")

	duration := family(t, mfs, "storefront_cron_job_duration_seconds")
	require.Len(t, duration.GetMetric(), 1)
	assert.Equal(t, uint64(2), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	m := NewCronJobMetrics(nil)
	assert.Nil(t, m)
	m.ObserveRun("job", time.Second, time.Now(), nil)
	m.AddAffected("job", 1)
}

func family(t *testing.T, mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %q not gathered", name)
	return nil
}

func sampleValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	for _, metric := range mf.GetMetric() {
		if !hasLabels(metric.GetLabel(), labels) {
			continue
		}
		switch {
		case metric.GetCounter() != nil:
			return metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			return metric.GetGauge().GetValue()
		}
	}
	return -1
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
