package command

import "time"

// ConfidenceGate is the minimum score a match needs to be accepted.
const ConfidenceGate = 0.6

// Classifier maps free text to the best matching variant of a Registry.
type Classifier struct {
	registry *Registry
	gate     float64
	now      func() time.Time
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithGate overrides the confidence gate. Values outside [0, 1] are ignored.
func WithGate(gate float64) ClassifierOption {
	return func(c *Classifier) {
		if gate >= 0 && gate <= 1 {
			c.gate = gate
		}
	}
}

// WithClock sets the time source used for Result timestamps.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClassifier creates a classifier over reg. A nil registry uses DefaultRegistry.
func NewClassifier(reg *Registry, opts ...ClassifierOption) *Classifier {
	if reg == nil {
		reg = DefaultRegistry()
	}
	c := &Classifier{
		registry: reg,
		gate:     ConfidenceGate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry the classifier searches.
func (c *Classifier) Registry() *Registry {
	return c.registry
}

// Gate returns the confidence gate in use.
func (c *Classifier) Gate() float64 {
	return c.gate
}

// Classify normalizes raw and returns the best matching variant and its score.
//
// Every phrase of every entry is scored in registry order; a later phrase only
// replaces the best match when it scores strictly higher. If the best score is
// below the gate the variant is Unknown but the score is still reported.
func (c *Classifier) Classify(raw string) (Variant, float64) {
	return c.classifyNormalized(Normalize(raw))
}

func (c *Classifier) classifyNormalized(text string) (Variant, float64) {
	best, bestScore := Unknown, 0.0
	if text == "" {
		return best, bestScore
	}
	c.registry.each(func(v Variant, phrase string) {
		if s := Score(text, phrase); s > bestScore {
			best, bestScore = v, s
		}
	})
	if bestScore < c.gate {
		return Unknown, bestScore
	}
	return best, bestScore
}

// Recognize classifies raw and extracts parameters for the resulting variant.
func (c *Classifier) Recognize(raw string) Result {
	text := Normalize(raw)
	res := Result{
		OriginalInput:   raw,
		NormalizedInput: text,
		Timestamp:       c.now(),
	}
	if text == "" {
		res.Command = Unknown
		res.Params = NoParams{}
		res.Err = ErrEmptyInput
		return res
	}
	res.Command, res.Confidence = c.classifyNormalized(text)
	res.Params = Extract(extractionText(raw), res.Command)
	return res
}

var defaultClassifier = NewClassifier(nil)

// Classify runs the default classifier.
func Classify(raw string) (Variant, float64) {
	return defaultClassifier.Classify(raw)
}

// Recognize runs the default classifier and extracts parameters.
func Recognize(raw string) Result {
	return defaultClassifier.Recognize(raw)
}
