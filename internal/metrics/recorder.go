// Package metrics provides build metrics collection behind a Recorder
// interface. Components receive a Recorder through dependency injection and
// default to NoopRecorder, so metrics cost nothing unless a real
// implementation (Prometheus) is wired in.
package metrics

import "time"

// Recorder receives build events. Implementations must be safe for
// concurrent use: the rewrite phase runs across pages in parallel.
type Recorder interface {
	// PageRendered counts one page through the registration pass.
	PageRendered()
	// RefResolved counts one resolved cross-reference.
	RefResolved(external bool)
	// RefUnresolved counts one unresolved, non-optional cross-reference.
	RefUnresolved()
	// BacklinkRecorded counts one recorded backlink.
	BacklinkRecorded()
	// PhaseDuration records how long a build phase took.
	PhaseDuration(phase string, d time.Duration)
}

// NoopRecorder implements Recorder with no-ops. The zero value is ready to use.
type NoopRecorder struct{}

func (NoopRecorder) PageRendered()                       {}
func (NoopRecorder) RefResolved(bool)                    {}
func (NoopRecorder) RefUnresolved()                      {}
func (NoopRecorder) BacklinkRecorded()                   {}
func (NoopRecorder) PhaseDuration(string, time.Duration) {}
