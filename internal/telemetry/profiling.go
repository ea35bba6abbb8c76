// Package telemetry wires continuous profiling into covrpc's demo binary.
package telemetry

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig controls Pyroscope continuous profiling for one process.
type ProfilingConfig struct {
	// Enabled controls whether profiling is started at all.
	Enabled bool

	// ServiceName is the application name shown in Pyroscope.
	ServiceName string

	// ServiceVersion tags the uploaded profile with a build version.
	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g. "http://localhost:4040").
	Endpoint string
}

// StartProfiling starts a CPU and allocation profile upload loop and
// returns a shutdown function that stops it. If cfg.Enabled is false,
// StartProfiling is a no-op and the returned shutdown does nothing.
func StartProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		return func() error { return nil }, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags: map[string]string{
			"version": cfg.ServiceVersion,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseObjects,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: start profiler: %w", err)
	}

	return profiler.Stop, nil
}
