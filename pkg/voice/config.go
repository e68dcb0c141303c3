package voice

import (
	"errors"
	"time"
)

// Config holds the tunable behaviour of an Orchestrator.
type Config struct {
	// DefaultMode is used when a Request leaves Mode empty.
	DefaultMode Mode

	// ListenTimeout bounds the wait for a transcript when a Request has no
	// Timeout of its own. Zero waits until the transcriber returns.
	ListenTimeout time.Duration

	// ApologyText is spoken when the conversational fallback fails.
	ApologyText string

	// NotUnderstoodText is spoken when no command matches and there is no fallback.
	NotUnderstoodText string

	// SuggestOnNoMatch appends the closest registered phrase to NotUnderstoodText.
	SuggestOnNoMatch bool

	// DictationConfirmation is spoken after dictation. Empty stays silent.
	DictationConfirmation string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMode:       ModeCommand,
		ListenTimeout:     15 * time.Second,
		ApologyText:       "Sorry, I'm having trouble answering right now. Please try again.",
		NotUnderstoodText: "Sorry, I didn't understand that.",
		SuggestOnNoMatch:  true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !c.DefaultMode.Valid() {
		return errors.New("voice: invalid default mode: " + string(c.DefaultMode))
	}
	if c.ListenTimeout < 0 {
		return errors.New("voice: listen timeout must not be negative")
	}
	if c.ApologyText == "" {
		return errors.New("voice: apology text required")
	}
	if c.NotUnderstoodText == "" {
		return errors.New("voice: not-understood text required")
	}
	return nil
}

// WithDefaultMode returns a copy with the default mode set.
func (c Config) WithDefaultMode(m Mode) Config {
	c.DefaultMode = m
	return c
}

// WithListenTimeout returns a copy with the listen timeout set.
func (c Config) WithListenTimeout(d time.Duration) Config {
	c.ListenTimeout = d
	return c
}

// WithDictationConfirmation returns a copy that speaks text after dictation.
func (c Config) WithDictationConfirmation(text string) Config {
	c.DictationConfirmation = text
	return c
}
