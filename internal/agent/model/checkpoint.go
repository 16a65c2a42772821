package model

import (
	"context"
	"time"
)

// Checkpoint is the durable snapshot taken after every node transition. A
// paused conversation survives a process restart because NextNode records
// exactly where execution resumes.
type Checkpoint struct {
	ThreadID  string             `json:"thread_id"`
	State     *ConversationState `json:"state"`
	NextNode  string             `json:"next_node"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Paused reports whether the checkpoint suspended mid-graph awaiting input.
func (c *Checkpoint) Paused() bool {
	return c != nil && c.NextNode != ""
}

// CheckpointStore persists per-thread checkpoints. Access is read-modify-write
// per node; the engine serializes turns per thread, so implementations need no
// cross-thread coordination.
type CheckpointStore interface {
	// Save persists the checkpoint, replacing any previous one for the thread.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load returns the latest checkpoint for a thread, or nil when none exists.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Delete removes the thread's checkpoint.
	Delete(ctx context.Context, threadID string) error
}
