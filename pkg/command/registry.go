package command

import (
	"errors"
	"fmt"
)

// Registry construction errors.
var (
	// ErrNoPhrases is returned when an entry has an empty phrase list.
	ErrNoPhrases = errors.New("command: entry has no trigger phrases")

	// ErrEmptyPhrase is returned when a phrase normalizes to the empty string.
	ErrEmptyPhrase = errors.New("command: empty trigger phrase")

	// ErrDuplicatePhrase is returned when two entries share a phrase.
	ErrDuplicatePhrase = errors.New("command: duplicate trigger phrase")

	// ErrDuplicateVariant is returned when a variant has more than one entry.
	ErrDuplicateVariant = errors.New("command: duplicate variant entry")

	// ErrInvalidVariant is returned for Unknown or undeclared variants.
	ErrInvalidVariant = errors.New("command: invalid variant for registry entry")
)

// Entry maps a variant to its ordered trigger phrases.
type Entry struct {
	Variant Variant
	Phrases []string
}

// Registry is an immutable, ordered table of trigger phrases.
// Iteration order is the construction order and decides ties in the Classifier.
// A Registry may be shared between goroutines without synchronization.
type Registry struct {
	entries []Entry
	index   map[Variant]int
}

// NewRegistry validates entries and builds a Registry.
// Phrases are normalized at construction time; a phrase that normalizes to ""
// or repeats a phrase of any entry is rejected.
func NewRegistry(entries []Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[Variant]int, len(entries)),
	}
	owner := make(map[string]Variant)

	for _, e := range entries {
		if e.Variant == Unknown || !e.Variant.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVariant, e.Variant)
		}
		if _, dup := r.index[e.Variant]; dup {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateVariant, e.Variant)
		}
		if len(e.Phrases) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrNoPhrases, e.Variant)
		}

		phrases := make([]string, 0, len(e.Phrases))
		for _, raw := range e.Phrases {
			p := Normalize(raw)
			if p == "" {
				return nil, fmt.Errorf("%w: %v %q", ErrEmptyPhrase, e.Variant, raw)
			}
			if prev, dup := owner[p]; dup {
				return nil, fmt.Errorf("%w: %q used by %v and %v", ErrDuplicatePhrase, p, prev, e.Variant)
			}
			owner[p] = e.Variant
			phrases = append(phrases, p)
		}

		r.index[e.Variant] = len(r.entries)
		r.entries = append(r.entries, Entry{Variant: e.Variant, Phrases: phrases})
	}

	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on invalid input.
// A broken phrase table is a programming error.
func MustNewRegistry(entries []Entry) *Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return r
}

// PhrasesFor returns a copy of the phrases registered for v, in order.
// It returns nil for Unknown and unregistered variants.
func (r *Registry) PhrasesFor(v Variant) []string {
	i, ok := r.index[v]
	if !ok {
		return nil
	}
	return append([]string(nil), r.entries[i].Phrases...)
}

// Variants returns the registered variants in iteration order. Unknown is never included.
func (r *Registry) Variants() []Variant {
	out := make([]Variant, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Variant
	}
	return out
}

// Entries returns a deep copy of the registry table.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = Entry{Variant: e.Variant, Phrases: append([]string(nil), e.Phrases...)}
	}
	return out
}

// Len returns the number of registered variants.
func (r *Registry) Len() int {
	return len(r.entries)
}

// each calls fn for every (variant, phrase) pair in iteration order.
func (r *Registry) each(fn func(v Variant, phrase string)) {
	for _, e := range r.entries {
		for _, p := range e.Phrases {
			fn(e.Variant, p)
		}
	}
}

// defaultEntries is the vehicle assistant phrase table.
var defaultEntries = []Entry{
	{HealthCheck, []string{
		"health check", "vehicle health", "check vehicle health", "run diagnostics",
		"diagnostic check", "how is my car",
	}},
	{LockDoors, []string{"lock the doors", "lock doors", "lock the car", "lock my car"}},
	{UnlockDoors, []string{"unlock the doors", "unlock doors", "unlock the car", "unlock my car"}},
	{StartEngine, []string{
		"start the engine", "start engine", "start the car", "start my car", "turn on the engine",
	}},
	{StopEngine, []string{
		"stop the engine", "stop engine", "turn off the engine", "turn off the car", "shut down the engine",
	}},
	{ClimateControl, []string{
		"climate control", "set temperature", "set the temperature", "adjust temperature",
		"turn on the ac", "turn off the ac", "turn on the heat", "air conditioning",
	}},
	{LightsControl, []string{
		"turn on the lights", "turn off the lights", "lights on", "lights off", "headlights", "fog lights",
	}},
	{EmergencyCall, []string{
		"emergency", "emergency call", "call emergency", "call for help", "call 911", "sos",
	}},
	{HazardLights, []string{"hazard lights", "hazards", "turn on hazards", "flashers"}},
	{ScheduleMaintenance, []string{
		"schedule maintenance", "book maintenance", "schedule a service", "book a service",
		"service appointment", "schedule an appointment", "oil change",
	}},
	{CheckFuelEfficiency, []string{"fuel efficiency", "fuel economy", "gas mileage", "miles per gallon", "mpg"}},
	{FindServiceCenter, []string{
		"find service center", "find a service center", "service center", "find a mechanic",
		"nearest mechanic", "repair shop", "nearest dealer",
	}},
	{Navigate, []string{
		"navigate to", "directions to", "take me to", "route to", "how to get to", "drive to", "go to", "navigate",
	}},
	{CheckAlerts, []string{"check alerts", "any alerts", "show alerts", "warnings", "any warnings", "notifications"}},
	{FuelLevel, []string{"fuel level", "how much fuel", "how much gas", "gas level", "fuel tank", "am i low on gas"}},
	{BatteryStatus, []string{
		"battery status", "battery level", "battery health", "check battery", "how is the battery",
	}},
	{TireStatus, []string{"tire pressure", "tire status", "check tires", "check the tires", "tyre pressure"}},
	{EngineStatus, []string{
		"engine status", "engine health", "check engine", "engine temperature", "how is the engine",
	}},
	{MaintenanceHistory, []string{
		"maintenance history", "service history", "service records", "maintenance records", "past maintenance",
	}},
	{Help, []string{"help", "what can you do", "show commands", "list commands", "voice commands"}},
}

var defaultRegistry = MustNewRegistry(defaultEntries)

// DefaultRegistry returns the built-in vehicle assistant registry.
// It covers every variant except Unknown.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
