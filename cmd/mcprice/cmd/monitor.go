package cmd

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/cpu"

	"github.com/bcdannyboy/mcprice/logger"
)

// monitorCPU logs machine-wide CPU utilisation every interval until ctx is done.
func monitorCPU(ctx context.Context, l *logger.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			percentage, err := cpu.PercentWithContext(ctx, time.Second, false)
			if err != nil || len(percentage) == 0 {
				continue
			}
			l.Infof("cpu usage %.1f%%", percentage[0])
		}
	}
}

// startMonitor runs monitorCPU in the background when enabled; the returned func stops it.
func startMonitor(ctx context.Context, enabled bool) func() {
	if !enabled {
		return func() {}
	}
	mctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		monitorCPU(mctx, log, 5*time.Second)
	}()
	return func() {
		cancel()
		<-done
	}
}
