// Package health aggregates liveness of the engine adapters and the artifact
// storage into a single status payload.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/voxbr/tts-gateway/internal/core"
)

// StorageChecker is the storage writability probe.
type StorageChecker interface {
	CheckWritable() error
}

// Reporter probes the two engines and storage in parallel under a shared time
// budget. A probe that does not answer within the budget counts as down, so a
// hung engine can never hang the health endpoint.
type Reporter struct {
	cloud   core.Engine
	local   core.Engine
	storage StorageChecker
	budget  time.Duration
	version string
	started time.Time
}

// New creates a reporter. The budget bounds the whole report.
func New(
	cloud, local core.Engine,
	storage StorageChecker,
	budget time.Duration,
	version string,
) *Reporter {
	return &Reporter{
		cloud:   cloud,
		local:   local,
		storage: storage,
		budget:  budget,
		version: version,
		started: time.Now(),
	}
}

// Report computes the current health status. It never returns an error;
// failures degrade the status instead.
func (r *Reporter) Report(ctx context.Context) core.HealthStatus {
	probeCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	cloudCh := probe(probeCtx, func() error { return r.cloud.Ping(probeCtx) })
	localCh := probe(probeCtx, func() error { return r.local.Ping(probeCtx) })
	storageCh := probe(probeCtx, func() error { return r.storage.CheckWritable() })

	status := core.HealthStatus{
		EngineCloud: await(probeCtx, cloudCh),
		EngineLocal: await(probeCtx, localCh),
		Storage:     await(probeCtx, storageCh),
		Version:     r.version,
		Uptime:      formatUptime(time.Since(r.started)),
	}

	status.Overall = aggregate(status)

	return status
}

// probe runs the check in its own goroutine so a hung probe cannot block the
// report past the budget; the goroutine is abandoned on overrun.
func probe(ctx context.Context, check func() error) <-chan error {
	resultCh := make(chan error, 1)

	go func() {
		select {
		case resultCh <- check():
		case <-ctx.Done():
		}
	}()

	return resultCh
}

func await(ctx context.Context, resultCh <-chan error) core.ProbeState {
	select {
	case err := <-resultCh:
		if err != nil {
			return core.ProbeDown
		}

		return core.ProbeUp
	case <-ctx.Done():
		return core.ProbeDown
	}
}

func aggregate(status core.HealthStatus) core.OverallState {
	up := 0

	for _, state := range []core.ProbeState{status.EngineCloud, status.EngineLocal, status.Storage} {
		if state == core.ProbeUp {
			up++
		}
	}

	switch up {
	case 3:
		return core.OverallHealthy
	case 0:
		return core.OverallDown
	default:
		return core.OverallDegraded
	}
}

func formatUptime(elapsed time.Duration) string {
	days := int(elapsed.Hours()) / 24
	hours := int(elapsed.Hours()) % 24
	minutes := int(elapsed.Minutes()) % 60

	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}
