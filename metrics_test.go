package main

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
)

func TestMetricsUpdate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	battery := 87
	now := time.Unix(1700000000, 0)

	m.update([]zwayStructs.Reading{
		{Id: "2.0", Name: "2_General_purpose", Type: zwayStructs.ValueBoolean, Value: 1, Battery: &battery},
		{Id: "2.1", Name: "2_Temperature", Type: zwayStructs.ValueNumeric, Value: 21.5},
	}, now)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sensorValue.WithLabelValues("2.0", "2_General_purpose", "boolean")))
	assert.Equal(t, 21.5, testutil.ToFloat64(m.sensorValue.WithLabelValues("2.1", "2_Temperature", "numeric")))
	assert.Equal(t, 87.0, testutil.ToFloat64(m.batteryLevel.WithLabelValues("2.0", "2_General_purpose")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.batteryLevel))
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(m.lastPoll))
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.update([]zwayStructs.Reading{{Id: "2.0", Name: "2_Temperature", Type: zwayStructs.ValueNumeric, Value: 3}}, time.Now())

	m.reset(zwayStructs.Registry{"3.0": {}, "3.1": {}})

	assert.Equal(t, 0, testutil.CollectAndCount(m.sensorValue))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.devices))
}
