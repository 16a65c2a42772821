package repo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/lorcraft-poc/server/internal/agent/model"
)

// MemoryCheckpointStore keeps checkpoints in process memory. It backs tests
// and local runs without Redis; snapshots are deep-copied through JSON so a
// stored checkpoint cannot be mutated by later turns.
type MemoryCheckpointStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{data: map[string][]byte{}}
}

func (s *MemoryCheckpointStore) Save(_ context.Context, cp *model.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[cp.ThreadID] = b
	return nil
}

func (s *MemoryCheckpointStore) Load(_ context.Context, threadID string) (*model.Checkpoint, error) {
	s.mu.RLock()
	b, ok := s.data[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *MemoryCheckpointStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

var _ model.CheckpointStore = (*MemoryCheckpointStore)(nil)

// MemoryConversationRepository is the in-process counterpart of the Redis
// conversation log.
type MemoryConversationRepository struct {
	mu   sync.RWMutex
	logs map[string][]*schema.Message
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{logs: map[string][]*schema.Message{}}
}

func (r *MemoryConversationRepository) AddMessage(_ context.Context, threadID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[threadID] = append(r.logs[threadID], message)
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, threadID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := make([]*schema.Message, len(r.logs[threadID]))
	copy(msgs, r.logs[threadID])
	return &model.ConversationHistory{ThreadID: threadID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, threadID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, threadID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.logs[threadID]), nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
