package repository

import (
	"context"

	"github.com/google/uuid"
)

// VerificationTask is a background verification job message. The worker
// runs a full force-validate pass for the NFT it names.
type VerificationTask struct {
	TaskID          uuid.UUID `json:"task_id"`
	NFTID           string    `json:"nft_id"`
	ForceValidate   bool      `json:"force_validate"`
	IgnoreSizeLimit bool      `json:"ignore_size_limit"`
	RetryCount      int       `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishVerificationTask sends a verification job to the queue.
	// Used by the API server to trigger async re-verification.
	PublishVerificationTask(ctx context.Context, task VerificationTask) error

	// ConsumeVerificationTasks starts consuming verification jobs from the
	// queue, calling the handler for each received task.
	// Used by the worker service.
	ConsumeVerificationTasks(ctx context.Context, handler func(task VerificationTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
