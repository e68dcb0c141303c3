package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Variant
		score float64
	}{
		{"exact phrase", "lock the doors", LockDoors, 1.0},
		{"punctuation and case", "Lock the doors!", LockDoors, 1.0},
		{"longer phrase wins over contained one", "unlock the doors", UnlockDoors, 1.0},
		{"lead-in inside sentence", "please go to the grocery store now", Navigate, 0.9},
		{"navigate with destination", "navigate to the airport", Navigate, 0.9},
		{"empty", "", Unknown, 0},
		{"punctuation only", "?!", Unknown, 0},
		{"below gate", "what is the weather like", Unknown, 0.4},
		{"single word", "help", Help, 1.0},
		{"climate", "set the temperature to 70 degrees", ClimateControl, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, score := Classify(tt.input)
			assert.Equal(t, tt.want, v)
			assert.InDelta(t, tt.score, score, 1e-9)
		})
	}
}

func TestClassifyEveryPhrase(t *testing.T) {
	for _, e := range DefaultRegistry().Entries() {
		for _, p := range e.Phrases {
			v, score := Classify(p)
			assert.Equal(t, e.Variant, v, "phrase %q", p)
			assert.Equal(t, 1.0, score, "phrase %q", p)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := []string{
		"lock the doors", "please go to the grocery store now", "what is the weather like",
		"how is the battery doing", "turn", "the", "",
	}
	for _, in := range inputs {
		v1, s1 := Classify(in)
		for i := 0; i < 5; i++ {
			v2, s2 := Classify(in)
			assert.Equal(t, v1, v2, "input %q", in)
			assert.Equal(t, s1, s2, "input %q", in)
		}
	}
}

func TestClassifyConfidenceGate(t *testing.T) {
	inputs := []string{
		"what is the weather like", "play some music", "check", "tell me a joke about cars",
		"how far is the moon", "open the sunroof", "battery", "lights",
	}
	for _, in := range inputs {
		v, score := Classify(in)
		if score < ConfidenceGate {
			assert.Equal(t, Unknown, v, "input %q scored %v", in, score)
		} else {
			assert.NotEqual(t, Unknown, v, "input %q scored %v", in, score)
		}
	}
}

func TestClassifierTiesKeepFirst(t *testing.T) {
	reg := MustNewRegistry([]Entry{
		{FuelLevel, []string{"fuel level"}},
		{CheckFuelEfficiency, []string{"fuel economy"}},
	})
	c := NewClassifier(reg)

	// Both phrases score 0.7 on "fuel".
	v, score := c.Classify("fuel")
	assert.Equal(t, FuelLevel, v)
	assert.InDelta(t, 0.7, score, 1e-9)
}

func TestClassifierWithGate(t *testing.T) {
	c := NewClassifier(nil, WithGate(0.95))

	v, score := c.Classify("please go to the store")
	assert.Equal(t, Unknown, v)
	assert.InDelta(t, 0.9, score, 1e-9)

	v, _ = c.Classify("go to")
	assert.Equal(t, Navigate, v)

	assert.Equal(t, 0.95, c.Gate())
	assert.Equal(t, ConfidenceGate, NewClassifier(nil, WithGate(1.5)).Gate())
}

func TestRecognize(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewClassifier(nil, WithClock(func() time.Time { return fixed }))

	t.Run("success", func(t *testing.T) {
		res := c.Recognize("Navigate to the airport.")
		require.True(t, res.IsSuccess())
		assert.Equal(t, Navigate, res.Command)
		assert.Equal(t, "Navigate to the airport.", res.OriginalInput)
		assert.Equal(t, "navigate to the airport", res.NormalizedInput)
		assert.InDelta(t, 0.9, res.Confidence, 1e-9)
		assert.Equal(t, fixed, res.Timestamp)
		assert.Equal(t, NavigateParams{Destination: "the airport"}, res.Params)
		assert.Equal(t, map[string]any{"destination": "the airport"}, res.Parameters())
	})

	t.Run("symbols read by extractors", func(t *testing.T) {
		res := c.Recognize("Set the temperature to 72°")
		require.True(t, res.IsSuccess())
		assert.Equal(t, ClimateControl, res.Command)
		assert.Equal(t, "set the temperature to 72", res.NormalizedInput)
		assert.Equal(t, ClimateParams{Temperature: 72, Action: ActionSet}, res.Params)

		res = c.Recognize("Oil change at 10:30, please")
		assert.Equal(t, ScheduleMaintenance, res.Command)
		assert.Equal(t, MaintenanceParams{ServiceType: ServiceOilChange, Timing: "10:30"}, res.Params)
	})

	t.Run("empty input", func(t *testing.T) {
		res := c.Recognize("   ")
		assert.False(t, res.IsSuccess())
		assert.ErrorIs(t, res.Err, ErrEmptyInput)
		assert.Equal(t, Unknown, res.Command)
		assert.Empty(t, res.Parameters())
	})

	t.Run("no match", func(t *testing.T) {
		res := c.Recognize("what is the weather like")
		assert.False(t, res.IsSuccess())
		assert.NoError(t, res.Err)
		assert.Equal(t, Unknown, res.Command)
		assert.Equal(t, NoParams{}, res.Params)
	})
}
