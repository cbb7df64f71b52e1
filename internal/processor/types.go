package processor

import (
	"time"

	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
)

const (
	// MatchLength is how long a booked slot is held before the match counts as played.
	MatchLength = time.Hour
	// notifyWindow bounds how late a completion notice is still worth sending.
	notifyWindow = 24 * time.Hour
)

// Processor advances scheduled matches and turns scheduling events into notifications.
type Processor struct {
	store    Store
	teams    Teams
	pubsub   pubsub.PubSubClient
	notifier Notifier
	metrics  metrics.Metrics
	now      func() time.Time
}
