package idempotency

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// NATSStore keeps records in a JetStream key-value bucket. KV revisions
// back the compare-and-swap contract, so several pagesmith processes can
// share one bucket.
type NATSStore struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATSStore connects to url and opens or creates bucket.
func NewNATSStore(ctx context.Context, url, bucket string) (*NATSStore, error) {
	conn, err := nats.Connect(url, nats.Name("pagesmith"))
	if err != nil {
		return nil, storeError("failed to connect to NATS", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, storeError("failed to create JetStream context", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if stderrors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "pagesmith job idempotency records",
			History:     1,
		})
		if err == nil {
			slog.Info("Created idempotency bucket", logfields.Backend("nats"), slog.String("bucket", bucket))
		}
	}
	if err != nil {
		conn.Close()
		return nil, storeError("failed to open KV bucket", err)
	}
	return &NATSStore{conn: conn, kv: kv}, nil
}

// natsKey maps an arbitrary identity key onto the KV key alphabet.
func natsKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (s *NATSStore) Get(ctx context.Context, key string) (Record, bool, error) {
	entry, err := s.kv.Get(ctx, natsKey(key))
	if stderrors.Is(err, jetstream.ErrKeyNotFound) || stderrors.Is(err, jetstream.ErrKeyDeleted) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, storeError("failed to get record", err)
	}
	r, err := decode(entry.Value(), entry.Revision())
	return r, err == nil, err
}

func (s *NATSStore) CompareAndSwap(ctx context.Context, key string, expected uint64, next Record) (Record, error) {
	next.Key = key
	payload, err := encode(next)
	if err != nil {
		return Record{}, err
	}
	var rev uint64
	if expected == 0 {
		rev, err = s.kv.Create(ctx, natsKey(key), payload)
	} else {
		rev, err = s.kv.Update(ctx, natsKey(key), payload, expected)
	}
	if err != nil {
		if isWrongRevision(err) {
			return Record{}, ErrConflict
		}
		return Record{}, storeError("failed to write record", err)
	}
	next.Revision = rev
	return next, nil
}

func (s *NATSStore) Delete(ctx context.Context, key string, expected uint64) error {
	if err := s.kv.Delete(ctx, natsKey(key), jetstream.LastRevision(expected)); err != nil {
		if isWrongRevision(err) {
			return ErrConflict
		}
		return storeError("failed to delete record", err)
	}
	return nil
}

func (s *NATSStore) Prune(ctx context.Context, resolvedBefore, pendingBefore time.Time) (int, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return 0, storeError("failed to list keys", err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}

	n := 0
	for _, k := range keys {
		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			continue
		}
		r, err := decode(entry.Value(), entry.Revision())
		if err != nil || !expired(r, resolvedBefore, pendingBefore) {
			continue
		}
		// A concurrent update wins; the record is no longer stale.
		if err := s.kv.Purge(ctx, k, jetstream.LastRevision(entry.Revision())); err == nil {
			n++
		}
	}
	return n, nil
}

// Close drains the NATS connection.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		return s.conn.Drain()
	}
	return nil
}

func isWrongRevision(err error) bool {
	if stderrors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return stderrors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
