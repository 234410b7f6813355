package application

import "time"

// MetricsRecorder receives probe and scan observations.
type MetricsRecorder interface {
	ObserveProbe(method, outcome string, attempts int, elapsed time.Duration)
	ObserveScan(status string, score int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProbe(string, string, int, time.Duration) {}

func (nopRecorder) ObserveScan(string, int, time.Duration) {}

func recorderOrNop(r MetricsRecorder) MetricsRecorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
