package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
)

type metrics struct {
	sensorValue    *prometheus.GaugeVec
	batteryLevel   *prometheus.GaugeVec
	devices        prometheus.Gauge
	controllerInfo *prometheus.GaugeVec
	lastPoll       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		sensorValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zway_sensor_value",
				Help: "Current sensor value, 0 or 1 for boolean sensors.",
			},
			[]string{"id", "name", "type"}),
		batteryLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zway_battery_level",
				Help: "Battery level in percent.",
			},
			[]string{"id", "name"},
		),
		devices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zway_devices",
				Help: "Number of data channels in the device registry.",
			},
		),
		controllerInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zway_controller_info",
				Help: "Software revision of the Z-Way controller.",
			},
			[]string{"version"},
		),
		lastPoll: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zway_last_poll_timestamp_seconds",
				Help: "Unix time of the last completed poll.",
			},
		),
	}
	reg.MustRegister(m.sensorValue)
	reg.MustRegister(m.batteryLevel)
	reg.MustRegister(m.devices)
	reg.MustRegister(m.controllerInfo)
	reg.MustRegister(m.lastPoll)
	return m
}

func (m *metrics) update(readings []zwayStructs.Reading, now time.Time) {
	for _, r := range readings {
		sugar.Debugf("%s %s, Value: %f", r.Id, r.Name, r.Value)
		m.sensorValue.WithLabelValues(r.Id, r.Name, string(r.Type)).Set(r.Value)
		if r.Battery != nil {
			m.batteryLevel.WithLabelValues(r.Id, r.Name).Set(float64(*r.Battery))
		}
	}
	m.lastPoll.Set(float64(now.Unix()))
}

// reset drops the series of devices that may be gone after a rescan.
func (m *metrics) reset(devices zwayStructs.Registry) {
	m.sensorValue.Reset()
	m.batteryLevel.Reset()
	m.devices.Set(float64(len(devices)))
}
