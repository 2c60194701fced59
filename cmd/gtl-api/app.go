package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/GTLTrack/internal/broker/kafka"
	"github.com/BearBump/GTLTrack/internal/broker/messages"
	"github.com/pkg/errors"
)

type gtlAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type changeApplier interface {
	ApplyChange(ctx context.Context, msg messages.ShipmentChanged) error
}

// runGTLAPI serves HTTP until ctx is done. consumer may be nil when Kafka is disabled.
func runGTLAPI(ctx context.Context, opts gtlAPIOpts, h http.Handler, cache changeApplier, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, h)
	}()

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			err := consumer.Consume(ctx, func(_key, value []byte) error {
				return handleShipmentChanged(ctx, cache, value)
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "topic", opts.topic, "error", err.Error())
			}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
}

// handleShipmentChanged evicts the cached lookup. Broken messages are skipped, a cache
// failure stops the consumer so the offset is not committed.
func handleShipmentChanged(ctx context.Context, cache changeApplier, value []byte) error {
	var m messages.ShipmentChanged
	if err := json.Unmarshal(value, &m); err != nil {
		return errors.Wrap(kafka.ErrSkipMessage, err.Error())
	}
	if m.LR == "" {
		return errors.Wrap(kafka.ErrSkipMessage, "empty lr")
	}
	return cache.ApplyChange(ctx, m)
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// запросы наследуют ctx, так что SSE-стримы закрываются вместе с сервером
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
