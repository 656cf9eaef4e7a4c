package stream

import (
	"time"

	"gardenrelay/internal/garden/memorystore"
	"gardenrelay/pkg/garden"

	"go.uber.org/zap"
)

// MakeMessageHandler returns a Handler that parses an upstream payload,
// normalizes it and publishes it to store as a single write stamped with now().
func MakeMessageHandler(logger *zap.Logger, store *memorystore.SnapshotStore,
	recorder Recorder, now func() time.Time) Handler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if now == nil {
		now = time.Now
	}

	return func(msg []byte) error {
		payload, err := garden.ParsePayload(msg)
		if err != nil {
			recorder.MalformedMessage()
			logger.Warn("skipping malformed upstream message",
				zap.Int("bytes", len(msg)), zap.Error(err))
			return err
		}

		shape := garden.DetectShape(payload)
		stock := garden.Normalize(payload)
		at := now()
		store.Publish(stock, msg, at)
		recorder.SnapshotUpdated(at)

		logger.Debug("stock updated",
			zap.String("shape", string(shape)),
			zap.Int("seeds", len(stock.Seeds)),
			zap.Int("gear", len(stock.Gear)),
			zap.Int("eggs", len(stock.Eggs)),
			zap.Int("cosmetics", len(stock.Cosmetics)),
			zap.Int("event", len(stock.Event)),
			zap.Int("merchants", len(stock.Merchants)),
		)
		if shape == garden.ShapeUnknown {
			logger.Warn("upstream payload has no known stock keys; lists cleared",
				zap.Int("keys", len(payload)))
		}
		return nil
	}
}
