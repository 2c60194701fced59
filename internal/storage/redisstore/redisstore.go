package redisstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	shipmentsKey   = "shipments"
	changedChannel = "shipments:changed"
)

// Store keeps shipments in one hash (field = lr, value = JSON record) and announces every
// write on a pub/sub channel so subscribers can re-read the set.
type Store struct {
	c *redis.Client
}

func New(addr string) *Store {
	return &Store{
		c: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

func (s *Store) Close() error {
	return s.c.Close()
}

func (s *Store) Get(ctx context.Context, lr string) (*models.ShipmentRecord, bool, error) {
	b, err := s.c.HGet(ctx, shipmentsKey, lr).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis hget")
	}
	var rec models.ShipmentRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, false, errors.Wrap(err, "decode shipment")
	}
	return &rec, true, nil
}

func (s *Store) Put(ctx context.Context, rec models.ShipmentRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode shipment")
	}
	pipe := s.c.TxPipeline()
	pipe.HSet(ctx, shipmentsKey, rec.LR, b)
	pipe.Publish(ctx, changedChannel, rec.LR)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis put shipment")
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, lr string) error {
	pipe := s.c.TxPipeline()
	pipe.HDel(ctx, shipmentsKey, lr)
	pipe.Publish(ctx, changedChannel, lr)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis remove shipment")
	}
	return nil
}

func (s *Store) All(ctx context.Context) (map[string]models.ShipmentRecord, error) {
	raw, err := s.c.HGetAll(ctx, shipmentsKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis hgetall")
	}
	out := make(map[string]models.ShipmentRecord, len(raw))
	for lr, v := range raw {
		var rec models.ShipmentRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			// Запись, положенная в обход API, не должна ломать весь список.
			slog.Warn("skip undecodable shipment", "lr", lr, "error", err.Error())
			continue
		}
		out[lr] = rec
	}
	return out, nil
}

// Watch signals (coalesced) after every Put/Remove until ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan string, error) {
	ps := s.c.Subscribe(ctx, changedChannel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "redis subscribe")
	}

	in := ps.Channel()
	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()
	return out, nil
}
