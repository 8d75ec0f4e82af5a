package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/INLOpen/nvattr/core"
)

// EventType defines the type of a hook event.
type EventType string

// --- Event Type Constants ---
const (
	// Attribute Lifecycle Events
	EventPreSetAttribute  EventType = "PreSetAttribute"
	EventPostSetAttribute EventType = "PostSetAttribute"
	EventPostGetAttribute EventType = "PostGetAttribute"

	// Integrity Events
	EventOnValueCorrected   EventType = "OnValueCorrected"
	EventOnIntegrityFailure EventType = "OnIntegrityFailure"

	// Store Lifecycle Events
	EventPostFormat   EventType = "PostFormat"
	EventPostSnapshot EventType = "PostSnapshot"
	EventPostRestore  EventType = "PostRestore"
	EventPreClose     EventType = "PreClose"
)

// --- HookManager Interface and Implementation ---

// HookManager defines the interface for managing and triggering hooks.
type HookManager interface {
	// Register adds a listener for a specific event type.
	Register(eventType EventType, listener HookListener)
	// Trigger fires all registered listeners for a given event.
	// It handles synchronous vs. asynchronous execution based on the event type and listener preference.
	Trigger(ctx context.Context, event HookEvent) error
	// Stop waits for all asynchronous listeners to complete. Useful for graceful shutdown.
	Stop()
}

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	// Type returns the type of the event.
	Type() EventType
	// Payload returns the data associated with the event.
	Payload() interface{}
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

// PreSetAttributePayload is passed before an attribute is written.
// Returning an error from a listener cancels the write.
type PreSetAttributePayload struct {
	ID    core.AttributeID
	Value []byte
}

// NewPreSetAttributeEvent creates a new event for before an attribute is set.
func NewPreSetAttributeEvent(payload PreSetAttributePayload) HookEvent {
	return &BaseEvent{eventType: EventPreSetAttribute, payload: payload}
}

// PostSetAttributePayload describes a completed write.
type PostSetAttributePayload struct {
	ID     core.AttributeID
	Start  uint16
	Length int
	// Replaced is true when the id already held a value of the same length.
	Replaced bool
}

// NewPostSetAttributeEvent creates a new event for after an attribute is set.
func NewPostSetAttributeEvent(payload PostSetAttributePayload) HookEvent {
	return &BaseEvent{eventType: EventPostSetAttribute, payload: payload}
}

// PostGetAttributePayload describes a completed read, successful or not.
type PostGetAttributePayload struct {
	ID     core.AttributeID
	Length int
	Error  error
}

// NewPostGetAttributeEvent creates a new event for after an attribute is read.
func NewPostGetAttributeEvent(payload PostGetAttributePayload) HookEvent {
	return &BaseEvent{eventType: EventPostGetAttribute, payload: payload}
}

// ValueCorrectedPayload reports a single flipped bit that was repaired on read.
type ValueCorrectedPayload struct {
	ID core.AttributeID
	// Bit is the corrected position, counted from the end of value+CRC.
	Bit   int
	Start uint16
}

// NewOnValueCorrectedEvent creates an event for a corrected value.
func NewOnValueCorrectedEvent(payload ValueCorrectedPayload) HookEvent {
	return &BaseEvent{eventType: EventOnValueCorrected, payload: payload}
}

// IntegrityFailurePayload reports an uncorrectable CRC mismatch.
type IntegrityFailurePayload struct {
	ID     core.AttributeID
	Region string
	Error  error
}

// NewOnIntegrityFailureEvent creates an event for an integrity failure.
func NewOnIntegrityFailureEvent(payload IntegrityFailurePayload) HookEvent {
	return &BaseEvent{eventType: EventOnIntegrityFailure, payload: payload}
}

// FormatPayload describes a freshly laid out medium.
type FormatPayload struct {
	Size       int64
	ValueStart int64
}

// NewPostFormatEvent creates an event for after the medium is formatted.
func NewPostFormatEvent(payload FormatPayload) HookEvent {
	return &BaseEvent{eventType: EventPostFormat, payload: payload}
}

// SnapshotPayload describes an exported or restored image.
type SnapshotPayload struct {
	ID          string
	Compression core.CompressionType
	ImageSize   int64
}

// NewPostSnapshotEvent creates an event for after an image is exported.
func NewPostSnapshotEvent(payload SnapshotPayload) HookEvent {
	return &BaseEvent{eventType: EventPostSnapshot, payload: payload}
}

// NewPostRestoreEvent creates an event for after an image is restored.
func NewPostRestoreEvent(payload SnapshotPayload) HookEvent {
	return &BaseEvent{eventType: EventPostRestore, payload: payload}
}

// NewPreCloseEvent creates an event for before the store closes.
func NewPreCloseEvent() HookEvent {
	return &BaseEvent{eventType: EventPreClose, payload: struct{}{}}
}

// --- HookListener Interface ---

// HookListener defines the interface for components that want to listen to events.
type HookListener interface {
	// OnEvent is called by the HookManager when a registered event is triggered.
	// Returning an error from a "Pre" hook cancels the operation.
	// Errors from other hooks are logged without affecting the main operation.
	OnEvent(ctx context.Context, event HookEvent) error
	// Priority returns the listener's priority. Lower numbers are executed first.
	Priority() int
	// IsAsync indicates if the listener should be called asynchronously for non-Pre events.
	IsAsync() bool
}

// listenerWithPriority wraps a listener with its priority.
type listenerWithPriority struct {
	listener HookListener
	priority int
}

// DefaultHookManager is a concrete implementation of HookManager.
type DefaultHookManager struct {
	// The map stores slices of listeners, kept sorted by priority.
	listeners map[EventType][]*listenerWithPriority
	mu        sync.RWMutex
	wg        sync.WaitGroup // For tracking async listeners
	logger    *slog.Logger
}

// NewHookManager creates a new DefaultHookManager.
func NewHookManager(logger *slog.Logger) HookManager {
	if logger == nil {
		// Default to a discard logger to prevent nil panics if no logger is provided.
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DefaultHookManager{
		listeners: make(map[EventType][]*listenerWithPriority),
		logger:    logger.With("component", "HookManager"),
	}
}

// Register adds a listener for a specific event type, maintaining priority order.
func (m *DefaultHookManager) Register(eventType EventType, listener HookListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &listenerWithPriority{
		listener: listener,
		priority: listener.Priority(),
	}

	l := m.listeners[eventType]
	// First index whose priority is greater, so equal priorities keep
	// registration order.
	idx := sort.Search(len(l), func(i int) bool {
		return l[i].priority > item.priority
	})
	l = append(l, nil)
	copy(l[idx+1:], l[idx:])
	l[idx] = item

	m.listeners[eventType] = l
}

// Trigger fires all registered listeners for a given event in priority order.
func (m *DefaultHookManager) Trigger(ctx context.Context, event HookEvent) error {
	m.mu.RLock()
	listeners := m.listeners[event.Type()]
	m.mu.RUnlock()

	if len(listeners) == 0 {
		return nil
	}

	isPreHook := strings.HasPrefix(string(event.Type()), "Pre")

	for _, item := range listeners {
		isListenerAsync := item.listener.IsAsync()

		// Pre-hooks MUST be synchronous to allow for cancellation.
		if isPreHook || !isListenerAsync {
			if isPreHook && isListenerAsync {
				m.logger.Warn("Listener for Pre-hook requested async execution, but Pre-hooks are always synchronous.", "event", event.Type(), "priority", item.priority)
			}

			if err := item.listener.OnEvent(ctx, event); err != nil {
				if isPreHook {
					return fmt.Errorf("pre-hook for event %s (priority %d) failed: %w", event.Type(), item.priority, err)
				}
				m.logger.Error("Error from synchronous post-hook listener", "event", event.Type(), "priority", item.priority, "error", err)
			}
		} else {
			m.wg.Add(1)
			go func(currentItem *listenerWithPriority) {
				defer m.wg.Done()
				if err := currentItem.listener.OnEvent(ctx, event); err != nil {
					m.logger.Error("Error from asynchronous post-hook listener", "event", event.Type(), "priority", currentItem.priority, "error", err)
				}
			}(item)
		}
	}
	return nil
}

// Stop waits for all asynchronous listeners to complete.
func (m *DefaultHookManager) Stop() {
	m.wg.Wait()
}
