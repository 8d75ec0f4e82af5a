package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingListener records calls and optionally fails or mutates the payload.
type recordingListener struct {
	name     string
	priority int
	async    bool
	err      error
	delay    time.Duration
	calls    *[]string
	signal   chan string
	fn       func(event HookEvent)
}

func (l *recordingListener) OnEvent(ctx context.Context, event HookEvent) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.fn != nil {
		l.fn(event)
	}
	if l.calls != nil {
		*l.calls = append(*l.calls, l.name)
	}
	if l.signal != nil {
		l.signal <- l.name
	}
	return l.err
}

func (l *recordingListener) Priority() int { return l.priority }
func (l *recordingListener) IsAsync() bool { return l.async }

func TestNewHookManager(t *testing.T) {
	manager, ok := NewHookManager(nil).(*DefaultHookManager)
	require.True(t, ok)
	assert.NotNil(t, manager.listeners)
	assert.NotNil(t, manager.logger)
}

func TestDefaultHookManager_Register(t *testing.T) {
	manager := NewHookManager(nil).(*DefaultHookManager)

	manager.Register(EventPreSetAttribute, &recordingListener{name: "late", priority: 10})
	manager.Register(EventPreSetAttribute, &recordingListener{name: "early", priority: 1})
	manager.Register(EventPreSetAttribute, &recordingListener{name: "middle", priority: 5})
	manager.Register(EventPreSetAttribute, &recordingListener{name: "middle-2", priority: 5})

	registered := manager.listeners[EventPreSetAttribute]
	require.Len(t, registered, 4)
	var names []string
	for _, item := range registered {
		names = append(names, item.listener.(*recordingListener).name)
	}
	assert.Equal(t, []string{"early", "middle", "middle-2", "late"}, names)
}

func TestDefaultHookManager_TriggerPreHook(t *testing.T) {
	t.Run("runs in priority order", func(t *testing.T) {
		manager := NewHookManager(nil)
		var calls []string
		manager.Register(EventPreSetAttribute, &recordingListener{name: "b", priority: 10, calls: &calls})
		manager.Register(EventPreSetAttribute, &recordingListener{name: "a", priority: 1, calls: &calls})

		err := manager.Trigger(context.Background(), NewPreSetAttributeEvent(PreSetAttributePayload{ID: 7}))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, calls)
	})

	t.Run("error cancels remaining listeners", func(t *testing.T) {
		manager := NewHookManager(nil)
		var calls []string
		denied := errors.New("denied")
		manager.Register(EventPreSetAttribute, &recordingListener{name: "first", priority: 1, calls: &calls})
		manager.Register(EventPreSetAttribute, &recordingListener{name: "guard", priority: 2, calls: &calls, err: denied})
		manager.Register(EventPreSetAttribute, &recordingListener{name: "never", priority: 3, calls: &calls})

		err := manager.Trigger(context.Background(), NewPreSetAttributeEvent(PreSetAttributePayload{ID: 7}))
		require.ErrorIs(t, err, denied)
		assert.Contains(t, err.Error(), "PreSetAttribute")
		assert.Equal(t, []string{"first", "guard"}, calls)
	})

	t.Run("listener can rewrite value bytes", func(t *testing.T) {
		manager := NewHookManager(nil)
		manager.Register(EventPreSetAttribute, &recordingListener{
			priority: 1,
			fn: func(event HookEvent) {
				p := event.Payload().(PreSetAttributePayload)
				p.Value[0] = 0xAA
			},
		})

		value := []byte{0x01, 0x02}
		err := manager.Trigger(context.Background(), NewPreSetAttributeEvent(PreSetAttributePayload{ID: 1, Value: value}))
		require.NoError(t, err)
		assert.Equal(t, []byte{0xAA, 0x02}, value)
	})

	t.Run("async request is ignored", func(t *testing.T) {
		manager := NewHookManager(nil)
		var calls []string
		manager.Register(EventPreClose, &recordingListener{name: "sync-anyway", priority: 1, async: true, calls: &calls})

		require.NoError(t, manager.Trigger(context.Background(), NewPreCloseEvent()))
		assert.Equal(t, []string{"sync-anyway"}, calls)
	})
}

func TestDefaultHookManager_TriggerPostHook(t *testing.T) {
	t.Run("sync and async listeners", func(t *testing.T) {
		manager := NewHookManager(nil)
		signal := make(chan string, 1)
		var calls []string
		manager.Register(EventPostSetAttribute, &recordingListener{name: "async", priority: 10, async: true, signal: signal})
		manager.Register(EventPostSetAttribute, &recordingListener{name: "sync", priority: 1, calls: &calls})

		err := manager.Trigger(context.Background(), NewPostSetAttributeEvent(PostSetAttributePayload{ID: 3, Length: 4}))
		require.NoError(t, err)
		assert.Equal(t, []string{"sync"}, calls)

		select {
		case name := <-signal:
			assert.Equal(t, "async", name)
		case <-time.After(time.Second):
			t.Fatal("async listener was not called")
		}
		manager.Stop()
	})

	t.Run("errors are logged and do not stop the chain", func(t *testing.T) {
		manager := NewHookManager(nil)
		var calls []string
		manager.Register(EventOnIntegrityFailure, &recordingListener{name: "fails", priority: 1, calls: &calls, err: errors.New("boom")})
		manager.Register(EventOnIntegrityFailure, &recordingListener{name: "runs", priority: 2, calls: &calls})

		err := manager.Trigger(context.Background(), NewOnIntegrityFailureEvent(IntegrityFailurePayload{ID: 9, Region: "value"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"fails", "runs"}, calls)
	})

	t.Run("no listeners", func(t *testing.T) {
		manager := NewHookManager(nil)
		assert.NoError(t, manager.Trigger(context.Background(), NewPostFormatEvent(FormatPayload{Size: 2048})))
	})
}

func TestDefaultHookManager_Stop(t *testing.T) {
	manager := NewHookManager(nil)
	var done atomic.Bool
	manager.Register(EventOnValueCorrected, &recordingListener{
		priority: 1,
		async:    true,
		delay:    30 * time.Millisecond,
		fn:       func(HookEvent) { done.Store(true) },
	})

	require.NoError(t, manager.Trigger(context.Background(), NewOnValueCorrectedEvent(ValueCorrectedPayload{ID: 2, Bit: 5})))
	manager.Stop()
	assert.True(t, done.Load(), "Stop returned before the async listener finished")
}

func TestEventPayloads(t *testing.T) {
	event := NewPostSnapshotEvent(SnapshotPayload{ID: "abc", ImageSize: 4096})
	assert.Equal(t, EventPostSnapshot, event.Type())
	assert.Equal(t, "abc", event.Payload().(SnapshotPayload).ID)

	event = NewPostRestoreEvent(SnapshotPayload{ID: "abc"})
	assert.Equal(t, EventPostRestore, event.Type())

	event = NewPostGetAttributeEvent(PostGetAttributePayload{ID: 1, Length: 3})
	assert.Equal(t, EventPostGetAttribute, event.Type())
}

func BenchmarkRegister(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		manager := NewHookManager(nil)
		for j := 0; j < 100; j++ {
			manager.Register(EventPreSetAttribute, &recordingListener{priority: j})
		}
	}
}
