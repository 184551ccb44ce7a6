package checkpoint

import (
	"context"
	"sync"
	"time"

	"ai-contentgen-be/pkg/pipeline"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCheckpointStore keeps checkpoints in process memory. Used by tests
// and as the fallback when no database is configured. Entries expire after
// retention so abandoned runs do not pile up.
type MemoryCheckpointStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

var _ pipeline.CheckpointStore = &MemoryCheckpointStore{}

func NewMemoryCheckpointStore(retention time.Duration) *MemoryCheckpointStore {
	if retention <= 0 {
		retention = gocache.NoExpiration
	}
	return &MemoryCheckpointStore{
		cache: gocache.New(retention, 10*time.Minute),
	}
}

func (s *MemoryCheckpointStore) Put(_ context.Context, checkpoint *pipeline.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := checkpoint.RunId.String()
	if existing, found := s.cache.Get(key); found {
		if existing.(*pipeline.Checkpoint).StageIndex > checkpoint.StageIndex {
			return pipeline.ErrCheckpointConflict
		}
	}

	snapshot := *checkpoint
	snapshot.State = checkpoint.State.Clone()
	s.cache.SetDefault(key, &snapshot)
	return nil
}

func (s *MemoryCheckpointStore) Get(_ context.Context, runId uuid.UUID) (*pipeline.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, found := s.cache.Get(runId.String())
	if !found {
		return nil, pipeline.ErrRunNotFound
	}
	checkpoint := *stored.(*pipeline.Checkpoint)
	checkpoint.State = checkpoint.State.Clone()
	return &checkpoint, nil
}

func (s *MemoryCheckpointStore) Delete(_ context.Context, runId uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(runId.String())
	return nil
}
