package shipments

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/GTLTrack/internal/broker/messages"
	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("shipment not found")
	ErrInvalidLR = errors.New("LR Number can only contain letters and numbers")
	ErrEmptyLR   = errors.New("LR Number is required")
)

// Store is the remote record store, keyed by lr.
type Store interface {
	Get(ctx context.Context, lr string) (*models.ShipmentRecord, bool, error)
	Put(ctx context.Context, rec models.ShipmentRecord) error
	Remove(ctx context.Context, lr string) error
	All(ctx context.Context) (map[string]models.ShipmentRecord, error)
	// Watch emits the lr of each mutation (coalesced) and is closed once ctx is done.
	// An empty lr means the backend may have missed changes and everything should be reloaded.
	Watch(ctx context.Context) (<-chan string, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	store    Store
	producer Producer
	topic    string
	timeout  time.Duration
	now      func() time.Time
	onWrite  []func(ctx context.Context, lr string) error
}

func New(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithChangeEvents publishes messages.ShipmentChanged to topic after every write.
func (s *Service) WithChangeEvents(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

// OnWrite registers fn to run after every successful write of lr, before the change event
// goes out. A rename calls it for both keys. Hook errors are logged, the write still succeeds.
func (s *Service) OnWrite(fn func(ctx context.Context, lr string) error) *Service {
	s.onWrite = append(s.onWrite, fn)
	return s
}

// WithTimeout bounds each store call. Zero means no bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func ValidateLR(lr string) error {
	if lr == "" {
		return ErrEmptyLR
	}
	if !models.ValidLR(lr) {
		return ErrInvalidLR
	}
	return nil
}

// Save writes rec under rec.LR, overwriting whatever was there.
func (s *Service) Save(ctx context.Context, rec models.ShipmentRecord) error {
	if err := ValidateLR(rec.LR); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.Put(ctx, rec); err != nil {
		return err
	}
	s.written(ctx, rec.LR)
	s.publish(ctx, rec.LR, messages.ShipmentOpSaved)
	return nil
}

func (s *Service) Fetch(ctx context.Context, lr string) (*models.ShipmentRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, ok, err := s.store.Get(ctx, lr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete is idempotent: removing an absent key succeeds.
func (s *Service) Delete(ctx context.Context, lr string) error {
	if lr == "" {
		return ErrEmptyLR
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.Remove(ctx, lr); err != nil {
		return err
	}
	s.written(ctx, lr)
	s.publish(ctx, lr, messages.ShipmentOpDeleted)
	return nil
}

// Rename stores rec under its (new) key and then drops oldLR. With equal keys it is Save.
// The two writes are not atomic: if the delete fails both keys exist and the error says so.
func (s *Service) Rename(ctx context.Context, oldLR string, rec models.ShipmentRecord) error {
	if err := ValidateLR(rec.LR); err != nil {
		return err
	}
	if oldLR == "" || oldLR == rec.LR {
		return s.Save(ctx, rec)
	}
	if err := s.Save(ctx, rec); err != nil {
		return err
	}
	if err := s.Delete(ctx, oldLR); err != nil {
		return errors.Wrapf(err, "remove old key %s after rename", oldLR)
	}
	return nil
}

func (s *Service) List(ctx context.Context) (map[string]models.ShipmentRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.All(ctx)
}

// Subscribe delivers the full record set now and after every store mutation until ctx is
// done or the returned stop func is called. onChange runs on a single goroutine.
func (s *Service) Subscribe(ctx context.Context, onChange func(map[string]models.ShipmentRecord)) (func(), error) {
	ctx, stop := context.WithCancel(ctx)

	// Watch до первого чтения, чтобы не пропустить запись между ними.
	changes, err := s.store.Watch(ctx)
	if err != nil {
		stop()
		return nil, err
	}
	initial, err := s.store.All(ctx)
	if err != nil {
		stop()
		return nil, err
	}

	go func() {
		onChange(initial)
		for range changes {
			all, err := s.store.All(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("reload shipments after change", "error", err.Error())
				continue
			}
			onChange(all)
		}
	}()
	return stop, nil
}

func (s *Service) written(ctx context.Context, lr string) {
	for _, fn := range s.onWrite {
		if err := fn(ctx, lr); err != nil {
			slog.Error("after write hook", "lr", lr, "error", err.Error())
		}
	}
}

func (s *Service) publish(ctx context.Context, lr, op string) {
	if s.producer == nil || s.topic == "" {
		return
	}
	b, err := json.Marshal(messages.ShipmentChanged{LR: lr, Op: op, At: s.now().UTC()})
	if err != nil {
		slog.Error("marshal shipment changed", "lr", lr, "error", err.Error())
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(lr), b); err != nil {
		slog.Error("publish shipment changed", "lr", lr, "op", op, "error", err.Error())
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
