package vehicle

// EventType identifies one kind of observable occurrence raised by the
// vehicle during a tick. Unlike a generic collision-pair event bus, every
// event here carries a corner or subsystem index rather than a pair of
// body pointers: the core has exactly one chassis and four corners, so
// there is no pairing to key on.
type EventType uint8

const (
	GroundContactGained EventType = iota
	GroundContactLost
	StickEngaged
	StickReleased
	GearShifted
	AntiStallEngaged
	AntiStallReleased
	NumericalRollback
)

// Event is the payload delivered to listeners. CornerIndex is -1 for
// vehicle-level events (gear shifts, numerical rollback).
type Event struct {
	Type        EventType
	CornerIndex int
	Gear        int // populated for GearShifted
}

// EventListener receives events synchronously during Flush.
type EventListener func(Event)

// Events is a minimal pub/sub buffer: per-tick occurrences are recorded
// during the tick and delivered to subscribers once, at a well-defined
// point after the late phase, so listeners never observe a half-updated
// tick.
type Events struct {
	listeners map[EventType][]EventListener
	buffer    []Event

	prevGroundContact [4]bool
	prevStick         [4]bool
	prevAntiStall     bool
}

// NewEvents constructs an empty event bus.
func NewEvents() *Events {
	return &Events{listeners: make(map[EventType][]EventListener)}
}

// Subscribe registers a listener for one event type.
func (e *Events) Subscribe(t EventType, listener EventListener) {
	e.listeners[t] = append(e.listeners[t], listener)
}

func (e *Events) emit(ev Event) {
	e.buffer = append(e.buffer, ev)
}

// noteGroundContact records this tick's ground-contact state for a corner,
// buffering a Gained/Lost transition event if it changed since last tick.
func (e *Events) noteGroundContact(corner int, contact bool) {
	if contact != e.prevGroundContact[corner] {
		if contact {
			e.emit(Event{Type: GroundContactGained, CornerIndex: corner})
		} else {
			e.emit(Event{Type: GroundContactLost, CornerIndex: corner})
		}
	}
	e.prevGroundContact[corner] = contact
}

// noteStick records this tick's stick-mode state for a corner.
func (e *Events) noteStick(corner int, active bool) {
	if active != e.prevStick[corner] {
		if active {
			e.emit(Event{Type: StickEngaged, CornerIndex: corner})
		} else {
			e.emit(Event{Type: StickReleased, CornerIndex: corner})
		}
	}
	e.prevStick[corner] = active
}

// noteAntiStall records the engine's anti-stall flag transition.
func (e *Events) noteAntiStall(active bool) {
	if active != e.prevAntiStall {
		if active {
			e.emit(Event{Type: AntiStallEngaged, CornerIndex: -1})
		} else {
			e.emit(Event{Type: AntiStallReleased, CornerIndex: -1})
		}
	}
	e.prevAntiStall = active
}

func (e *Events) noteGearShift(gear int) {
	e.emit(Event{Type: GearShifted, CornerIndex: -1, Gear: gear})
}

func (e *Events) noteNumericalRollback() {
	e.emit(Event{Type: NumericalRollback, CornerIndex: -1})
}

// Flush delivers all buffered events to their subscribers and clears the
// buffer. Call once per tick, after the late phase.
func (e *Events) Flush() {
	for _, ev := range e.buffer {
		for _, l := range e.listeners[ev.Type] {
			l(ev)
		}
	}
	e.buffer = e.buffer[:0]
}
