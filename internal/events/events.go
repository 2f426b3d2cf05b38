// Package events publishes domain events of the rewards engine to Kafka.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	UserRegistered      Type = "user.registered"
	WorkoutSubmitted    Type = "workout.submitted"
	TokensMinted        Type = "token.minted"
	TokensTransferred   Type = "token.transferred"
	AllowanceApproved   Type = "token.approved"
	NFTMinted           Type = "nft.minted"
	NFTRedeemed         Type = "nft.redeemed"
	RewardRedeemed      Type = "reward.redeemed"
	FitnessDataReceived Type = "oracle.fitness_data"
)

// Event is the envelope written to the topic. UserID is also the message key,
// so one user's events stay ordered within a partition.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	UserID     string         `json:"userId,omitempty"`
	TxHash     string         `json:"txHash,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// New builds an event with a fresh ID.
func New(t Type, userID, txHash string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		TxHash:     txHash,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Publish must not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
	Close() error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close() error                   { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType filters the recorded events.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
