package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	EventProposalMatched EventType = "proposal-matched"
	EventAutoWithdrawn   EventType = "confirmation-auto-withdrawn"
	EventMatchCompleted  EventType = "match-completed"
)

// PushRequest is the envelope Pub/Sub push subscriptions POST to an endpoint.
type PushRequest struct {
	Message struct {
		Data       []byte            `json:"data"`
		ID         string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
