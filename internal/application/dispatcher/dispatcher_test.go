package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolibooks/bolibooks/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) hasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}

func newEvent(t event.Type) *event.Event {
	return event.NewEvent(t, 1, 10, map[string]interface{}{"amount": "40.00"})
}

func TestSubscribe(t *testing.T) {
	t.Run("generated names are unique per type", func(t *testing.T) {
		d := NewDispatcher()
		noop := func(context.Context, *event.Event) error { return nil }
		d.Subscribe(event.TypePaymentRecorded, noop)
		d.Subscribe(event.TypePaymentRecorded, noop)

		handlers := d.ListHandlers(event.TypePaymentRecorded)
		require.Len(t, handlers, 2)
		assert.NotEqual(t, handlers[0].Name, handlers[1].Name)
	})

	t.Run("handlers run in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		d.SubscribeNamed(event.TypeInvoicePaid, "first", func(context.Context, *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.SubscribeNamed(event.TypeInvoicePaid, "second", func(context.Context, *event.Event) error {
			order = append(order, "second")
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), newEvent(event.TypeInvoicePaid)))
		assert.Equal(t, []string{"first", "second"}, order)
	})
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var calls []string
	d.SubscribeNamed(event.TypePaymentDeleted, "keep", func(context.Context, *event.Event) error {
		calls = append(calls, "keep")
		return nil
	})
	d.SubscribeNamed(event.TypePaymentDeleted, "drop", func(context.Context, *event.Event) error {
		calls = append(calls, "drop")
		return nil
	})

	d.Unsubscribe(event.TypePaymentDeleted, "drop")
	require.NoError(t, d.Dispatch(context.Background(), newEvent(event.TypePaymentDeleted)))
	assert.Equal(t, []string{"keep"}, calls)
}

func TestDispatch(t *testing.T) {
	t.Run("stops at first error", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		boom := errors.New("boom")
		secondCalled := false
		d.SubscribeNamed(event.TypePaymentRecorded, "failing", func(context.Context, *event.Event) error { return boom })
		d.SubscribeNamed(event.TypePaymentRecorded, "second", func(context.Context, *event.Event) error {
			secondCalled = true
			return nil
		})

		err := d.Dispatch(context.Background(), newEvent(event.TypePaymentRecorded))
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failing")
		assert.False(t, secondCalled)
		assert.True(t, logger.hasError("Handler error"))
	})

	t.Run("returns context error before running handlers", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.Subscribe(event.TypePaymentRecorded, func(context.Context, *event.Event) error {
			called = true
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, d.Dispatch(ctx, newEvent(event.TypePaymentRecorded)), context.Canceled)
		assert.False(t, called)
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypePaymentRecorded, func(context.Context, *event.Event) error { panic("bad handler") })

		err := d.Dispatch(context.Background(), newEvent(event.TypePaymentRecorded))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler panic")
		assert.True(t, logger.hasError("Handler panic recovered"))
	})

	t.Run("no handlers is not an error", func(t *testing.T) {
		d := NewDispatcher()
		assert.NoError(t, d.Dispatch(context.Background(), newEvent(event.TypeInvoiceOverdue)))
	})

	t.Run("fails after close", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.ErrorIs(t, d.Dispatch(context.Background(), newEvent(event.TypePaymentRecorded)), ErrClosed)
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("runs all handlers", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32
		for i := 0; i < 3; i++ {
			d.Subscribe(event.TypeGatewayPaymentSucceeded, func(context.Context, *event.Event) error {
				count.Add(1)
				return nil
			})
		}

		d.DispatchAsync(context.Background(), newEvent(event.TypeGatewayPaymentSucceeded))
		require.NoError(t, d.Close())
		assert.Equal(t, int32(3), count.Load())
	})

	t.Run("handlers outlive a cancelled request context", func(t *testing.T) {
		d := NewDispatcher()
		var sawErr atomic.Value
		d.Subscribe(event.TypePaymentRecorded, func(ctx context.Context, _ *event.Event) error {
			time.Sleep(20 * time.Millisecond)
			sawErr.Store(ctx.Err() == nil)
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, newEvent(event.TypePaymentRecorded))
		cancel()
		require.NoError(t, d.Close())
		assert.Equal(t, true, sawErr.Load())
	})

	t.Run("logs handler errors and panics", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypePaymentRecorded, func(context.Context, *event.Event) error { return errors.New("nope") })

		d.DispatchAsync(context.Background(), newEvent(event.TypePaymentRecorded))
		require.NoError(t, d.Close())
		assert.True(t, logger.hasError("Async handler error"))
	})

	t.Run("ignored after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		called := false
		d.Subscribe(event.TypePaymentRecorded, func(context.Context, *event.Event) error {
			called = true
			return nil
		})
		require.NoError(t, d.Close())

		d.DispatchAsync(context.Background(), newEvent(event.TypePaymentRecorded))
		assert.False(t, called)
		assert.True(t, logger.hasError("Cannot dispatch async event, dispatcher is closed"))
	})
}

func TestListHandlers(t *testing.T) {
	d := NewDispatcher()
	assert.Empty(t, d.ListHandlers(event.TypeInvoicePaid))

	d.SubscribeNamed(event.TypeInvoicePaid, "activity", func(context.Context, *event.Event) error { return nil })
	handlers := d.ListHandlers(event.TypeInvoicePaid)
	require.Len(t, handlers, 1)
	assert.Equal(t, "activity", handlers[0].Name)
	assert.Equal(t, event.TypeInvoicePaid, handlers[0].EventType)
	assert.Nil(t, handlers[0].Handler)
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Subscribe(event.TypePaymentUpdated, func(context.Context, *event.Event) error {
				count.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), newEvent(event.TypePaymentUpdated))
		}()
	}
	wg.Wait()

	assert.Len(t, d.ListHandlers(event.TypePaymentUpdated), 10)
	assert.Equal(t, int32(100), count.Load())
}
