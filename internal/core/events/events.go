package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const DefaultChannel = "cryptovault.events"

const (
	DepositRequested    = "deposit.requested"
	DepositConfirmed    = "deposit.confirmed"
	DepositRejected     = "deposit.rejected"
	WithdrawalRequested = "withdrawal.requested"
	WithdrawalApproved  = "withdrawal.approved"
	WithdrawalRejected  = "withdrawal.rejected"
	TransactionCanceled = "transaction.cancelled"
	SwapCompleted       = "swap.completed"
	AccountFunded       = "account.funded"
)

// Event is published after the unit of work that produced it has committed.
type Event struct {
	Type          string                 `json:"event_type"`
	UserID        string                 `json:"user_id"`
	Reference     string                 `json:"reference,omitempty"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Status        string                 `json:"status,omitempty"`
	Currency      string                 `json:"currency"`
	Amount        decimal.Decimal        `json:"amount"`
	BalanceAfter  *decimal.Decimal       `json:"balance_after,omitempty"`
	ProcessedBy   string                 `json:"processed_by,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisPublisher struct {
	client  publishClient
	channel string
	log     logger.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, log logger.Logger) *RedisPublisher {
	return newRedisPublisher(client, channel, log)
}

func newRedisPublisher(client publishClient, channel string, log logger.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.Debug("Event published",
		logger.StringField("type", event.Type),
		logger.StringField("user_id", event.UserID),
		logger.StringField("reference", event.Reference))

	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
