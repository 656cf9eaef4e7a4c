package stream

import "time"

// Handler consumes one raw upstream payload. A non-nil error means the
// payload was malformed and nothing was written.
type Handler func(msg []byte) error

// Recorder receives handler outcomes; the metrics registry implements it.
type Recorder interface {
	SnapshotUpdated(at time.Time)
	MalformedMessage()
}

type nopRecorder struct{}

func (nopRecorder) SnapshotUpdated(time.Time) {}
func (nopRecorder) MalformedMessage()         {}
