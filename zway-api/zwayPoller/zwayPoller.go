package zwayPoller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
)

// Source is the part of the Z-Way client the poller drives.
type Source interface {
	ReadAll() []zwayStructs.Reading
	ScanDevices() (zwayStructs.Registry, error)
}

type Poller struct {
	source   Source
	interval time.Duration
	rescan   time.Duration
	logger   *zap.SugaredLogger

	// OnScan is called with the new registry after every successful rescan.
	OnScan func(zwayStructs.Registry)
}

// NewPoller reads all devices every interval. With rescan > 0 the device tree is
// scanned again once rescan has passed since the last scan.
func NewPoller(source Source, interval time.Duration, rescan time.Duration, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		source:   source,
		interval: interval,
		rescan:   rescan,
		logger:   logger,
	}
}

// Run polls right away and then on every tick until ctx is done. Calls to the
// source and to f happen on the calling goroutine.
func (p *Poller) Run(ctx context.Context, f func([]zwayStructs.Reading)) error {
	p.logger.Info("Starting Polling every ", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	lastScan := time.Now()
	for ctx.Err() == nil {
		if p.rescan > 0 && time.Since(lastScan) >= p.rescan {
			p.scan()
			lastScan = time.Now()
		}

		readings := p.source.ReadAll()
		p.logger.Debug("Polled readings: ", len(readings))
		if f != nil {
			f(readings)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	p.logger.Info("Stopping Polling")
	return ctx.Err()
}

func (p *Poller) scan() {
	devices, err := p.source.ScanDevices()
	if err != nil {
		// the client keeps its previous registry
		p.logger.Error("Rescan failed: ", err)
		return
	}
	p.logger.Info("Rescanned devices: ", len(devices))
	if p.OnScan != nil {
		p.OnScan(devices)
	}
}
