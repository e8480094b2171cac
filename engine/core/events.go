package core

import "sync"

type EventContext struct {
	Data struct {
		U32 [4]uint32
		U16 [8]uint16
		F32 [4]float32
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * u16 key_code = data.data.u16[0];
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u16 width = data.data.u16[0];
	 * u16 height = data.data.u16[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventSystemState struct {
	mutex      sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

var onceEvent sync.Once
var eventState *eventSystemState

func EventInitialize() {
	onceEvent.Do(func() {
		eventState = &eventSystemState{
			registered: make(map[SystemEventCode][]*registeredEvent),
		}
	})
}

func EventShutdown() {
	if eventState == nil {
		return
	}
	eventState.mutex.Lock()
	eventState.registered = make(map[SystemEventCode][]*registeredEvent)
	eventState.mutex.Unlock()
}

// EventRegister subscribes the callback to the given code. The same
// listener/callback pair may be registered for multiple codes.
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if eventState == nil {
		LogWarn("EventRegister called before EventInitialize")
		return false
	}
	eventState.mutex.Lock()
	defer eventState.mutex.Unlock()
	eventState.registered[code] = append(eventState.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// EventFire notifies listeners in registration order; stops at the first
// listener that reports the event handled.
func EventFire(code SystemEventCode, sender interface{}, data EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mutex.RLock()
	listeners := eventState.registered[code]
	eventState.mutex.RUnlock()
	for _, re := range listeners {
		if re.callback(code, sender, data) {
			return true
		}
	}
	return false
}
