package memstore

import (
	"context"
	"sync"

	"github.com/BearBump/GTLTrack/internal/models"
)

// Store is an in-process record store for local runs and tests.
type Store struct {
	mu       sync.RWMutex
	records  map[string]models.ShipmentRecord
	watchers map[chan string]struct{}
}

func New() *Store {
	return &Store{
		records:  make(map[string]models.ShipmentRecord),
		watchers: make(map[chan string]struct{}),
	}
}

func (s *Store) Get(ctx context.Context, lr string) (*models.ShipmentRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[lr]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *Store) Put(ctx context.Context, rec models.ShipmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[rec.LR] = rec
	s.notifyLocked(rec.LR)
	s.mu.Unlock()
	return nil
}

func (s *Store) Remove(ctx context.Context, lr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, lr)
	s.notifyLocked(lr)
	s.mu.Unlock()
	return nil
}

func (s *Store) All(ctx context.Context) (map[string]models.ShipmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.ShipmentRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Watch(ctx context.Context) (<-chan string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan string, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *Store) notifyLocked(lr string) {
	for ch := range s.watchers {
		select {
		case ch <- lr:
		default:
		}
	}
}
