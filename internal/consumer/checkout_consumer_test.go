package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/rocketshoes-cart/internal/domain"
	"github.com/fjod/rocketshoes-cart/internal/engine"
	"github.com/fjod/rocketshoes-cart/internal/notify"
	"github.com/fjod/rocketshoes-cart/internal/session"
	"github.com/fjod/rocketshoes-cart/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readerMock struct {
	m         sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	fetchErr  error
}

func (r *readerMock) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.fetchErr != nil {
		return kafka.Message{}, r.fetchErr
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func (r *readerMock) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *readerMock) Close() error { return nil }

type backend struct{}

func (backend) GetStock(_ context.Context, id int64) (domain.StockRecord, error) {
	return domain.StockRecord{ID: id, Amount: 10}, nil
}

func (backend) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	return domain.Product{ID: id, Title: "Tênis"}, nil
}

type brokenStore struct{ *store.MemoryStore }

func (brokenStore) Save(context.Context, string, []byte) error {
	return errors.New("write failed")
}

func setupConsumer(t *testing.T, s engine.Store, msgs ...kafka.Message) (*CheckoutConsumer, *readerMock, *session.Registry) {
	t.Helper()
	log, _ := test.NewNullLogger()
	registry := session.NewRegistry(backend{}, backend{}, s, notify.Discard{}, log)
	reader := &readerMock{messages: msgs}
	return &CheckoutConsumer{sessions: registry, reader: reader, log: log}, reader, registry
}

func TestProcessMessage_ClearsCart(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	msg := kafka.Message{Value: []byte(`{"checkout_id":"c-1","session_id":"s1"}`)}
	c, reader, registry := setupConsumer(t, mem, msg)

	cart, err := registry.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, cart.AddItem(ctx, 1))

	c.processMessage(ctx)

	assert.Empty(t, cart.Cart())
	data, err := mem.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Len(t, reader.committed, 1)
}

func TestProcessMessage_SkipsBadPayloads(t *testing.T) {
	c, reader, registry := setupConsumer(t, store.NewMemoryStore(),
		kafka.Message{Value: []byte(`not json`)},
		kafka.Message{Value: []byte(`{"checkout_id":"c-2"}`)},
	)
	ctx := context.Background()

	c.processMessage(ctx)
	c.processMessage(ctx)

	assert.Len(t, reader.committed, 2)
	assert.Equal(t, 0, registry.Len())
}

func TestProcessMessage_ClearFailureIsNotCommitted(t *testing.T) {
	msg := kafka.Message{Value: []byte(`{"checkout_id":"c-3","session_id":"s1"}`)}
	c, reader, _ := setupConsumer(t, brokenStore{store.NewMemoryStore()}, msg)

	c.processMessage(context.Background())

	assert.Empty(t, reader.committed)
}

func TestRun_StopsOnCancel(t *testing.T) {
	c, reader, _ := setupConsumer(t, store.NewMemoryStore())
	reader.fetchErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.Run(ctx)
	assert.Empty(t, reader.committed)
}
