// Package broker adapts goa.design/pulse's Redis-streams client to the
// four named durable streams the pipeline runtime needs: event,
// verification, retrieval, classification. It is a thin, domain-specific
// wrapper over pulsec.Client/Stream/Sink (features/stream/pulse/clients/pulse
// in the reference tree), narrowed to the single read-one/append-one/ack
// shape the pipeline runtime actually uses.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	pulsec "goa.design/pulse/pulse"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/gitlab-triage/event-triage-pipeline/internal/config"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

// BlockDuration is the long-poll window used for every blocking stream read,
// matching spec §4.1's "block-read up to one pending record ... (long-poll,
// e.g. 10 s)".
const BlockDuration = 10 * time.Second

// Broker owns the Redis connection and the Pulse client built on top of it.
type Broker struct {
	redis  *redis.Client
	client pulsec.Client
}

// New connects to Redis per cfg and wraps it in a Pulse client. A connection
// failure here is fatal at startup, per spec §4.1.
func New(ctx context.Context, cfg config.Config) (*Broker, error) {
	var rdb *redis.Client
	switch cfg.BrokerMode {
	case config.BrokerModeSentinel:
		addrs := make([]string, len(cfg.SentinelHosts))
		copy(addrs, cfg.SentinelHosts)
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.SentinelMasterSet,
			SentinelAddrs:    addrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.BrokerPassword,
			DB:               cfg.BrokerDB,
		})
	default:
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.BrokerHost, cfg.BrokerPort),
			Password: cfg.BrokerPassword,
			DB:       cfg.BrokerDB,
		})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	client, err := pulsec.New(pulsec.Options{Redis: rdb})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("create pulse client: %w", err)
	}

	return &Broker{redis: rdb, client: client}, nil
}

// Close releases the broker connection.
func (b *Broker) Close(ctx context.Context) error {
	return errors.Join(b.client.Close(ctx), b.redis.Close())
}

// Stream opens the named durable stream.
func (b *Broker) Stream(ctx context.Context, name string) (*Stream, error) {
	s, err := b.client.Stream(name)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", name, err)
	}
	return &Stream{name: name, underlying: s}, nil
}

// Stream wraps a single named Pulse stream.
type Stream struct {
	name       string
	underlying pulsec.Stream
}

// Append appends one {kind: serialized-value} record, matching the wire
// format described in spec §6.
func (s *Stream) Append(ctx context.Context, kind model.EventKind, payload []byte) (string, error) {
	return s.underlying.Add(ctx, string(kind), payload)
}

// Consumer reads records from a stream one at a time and acks them by
// deletion, matching the xread+xdel contract of spec §6.
type Consumer struct {
	sink pulsec.Sink
}

// NewConsumer opens a sink on the stream that reads from the oldest
// unacked record (cursor position 0), matching spec §6's "read pending from
// position 0 is acceptable because deletion is used to ack".
func (s *Stream) NewConsumer(ctx context.Context, sinkName string) (*Consumer, error) {
	sink, err := s.underlying.NewSink(ctx, sinkName, streamopts.WithSinkBlockDuration(BlockDuration), streamopts.WithSinkStartAtOldest())
	if err != nil {
		return nil, fmt.Errorf("open sink on stream %s: %w", s.name, err)
	}
	return &Consumer{sink: sink}, nil
}

// Close releases the consumer's sink.
func (c *Consumer) Close(ctx context.Context) {
	c.sink.Close(ctx)
}

// Events returns the channel of incoming stream events. It is closed when
// the sink is closed.
func (c *Consumer) Events() <-chan *streaming.Event {
	return c.sink.Subscribe()
}

// Ack deletes ev from the input stream, completing the at-least-once
// delivery contract.
func (c *Consumer) Ack(ctx context.Context, ev *streaming.Event) error {
	return c.sink.Ack(ctx, ev)
}

// DecodeRecord extracts the EventKind and JSON payload from a raw stream
// event's single-field map, per spec §6's wire format.
func DecodeRecord(ev *streaming.Event) (model.Record, error) {
	for field, value := range ev.Payload {
		kind, ok := model.ParseEventKind(field)
		if !ok {
			return model.Record{}, fmt.Errorf("unrecognized event kind %q", field)
		}
		var raw json.RawMessage
		switch v := value.(type) {
		case string:
			raw = json.RawMessage(v)
		case []byte:
			raw = json.RawMessage(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return model.Record{}, fmt.Errorf("decode payload for %q: %w", field, err)
			}
			raw = encoded
		}
		return model.Record{Kind: kind, Payload: raw, MessageID: ev.ID}, nil
	}
	return model.Record{}, errors.New("empty stream record")
}
