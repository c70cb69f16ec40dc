package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"

	"roomcast/contract"
)

// Ensure *TelemetryWorker implements the contract.Worker interface at
// compile time.
var _ contract.Worker = (*TelemetryWorker)(nil)

// HubGauges reports the live counters of the broadcast core.
type HubGauges func() (connections, rooms, participants int)

// TelemetryWorker periodically logs process CPU/RSS alongside the hub
// gauges. Pure observability: losing a tick has no effect on the core.
type TelemetryWorker struct {
	log      *slog.Logger
	gauges   HubGauges
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, gauges HubGauges, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, gauges: gauges, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			cpu, err := self.CPUPercent()
			if err != nil {
				w.log.Debug("Error while reading cpu usage", "err", err)
				continue
			}
			ram, err := self.MemoryPercent()
			if err != nil {
				w.log.Debug("Error while reading ram usage", "err", err)
				continue
			}
			connections, rooms, participants := w.gauges()
			w.log.Info("Hub telemetry",
				"connections", connections,
				"rooms", rooms,
				"participants", participants,
				"cpu", cpu,
				"ram", ram)
		}
	}
}
