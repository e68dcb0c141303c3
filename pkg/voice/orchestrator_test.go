package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/session"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, tr Transcriber, s Synthesizer, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(tr, s, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return o
}

type startResult struct {
	res *Result
	err error
}

func startAsync(o *Orchestrator, ctx context.Context, req Request) <-chan startResult {
	ch := make(chan startResult, 1)
	go func() {
		res, err := o.Start(ctx, req)
		ch <- startResult{res, err}
	}()
	return ch
}

func waitForState(t *testing.T, o *Orchestrator, want session.State) {
	t.Helper()
	require.Eventually(t, func() bool { return o.State() == want }, 2*time.Second, time.Millisecond,
		"state never became %s", want)
}

func waitResult(t *testing.T, ch <-chan startResult) startResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
		return startResult{}
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil, NewMockSynthesizer())
	assert.Error(t, err)

	_, err = New(NewMockTranscriber("", 0), nil)
	assert.Error(t, err)

	_, err = New(NewMockTranscriber("", 0), NewMockSynthesizer(), WithConfig(Config{}))
	assert.Error(t, err)

	o := newTestOrchestrator(t, NewMockTranscriber("", 0), NewMockSynthesizer())
	assert.Equal(t, session.Idle, o.State())
	assert.Nil(t, o.LastResult())
}

func TestStartCommand(t *testing.T) {
	tr := NewMockTranscriber("Lock the doors", 0.92)
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, tr, synth)

	changes, unsubscribe := o.Subscribe(16)

	res, err := o.Start(context.Background(), Request{Mode: ModeCommand, LanguageHint: "en"})
	require.NoError(t, err)
	unsubscribe()

	assert.Equal(t, OutcomeCommand, res.Outcome)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "Lock the doors", res.Transcript)
	assert.Equal(t, 0.92, res.TranscriptConfidence)
	assert.Equal(t, command.LockDoors, res.Command)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "Locking the doors.", res.Response)
	assert.True(t, res.Spoken)
	assert.NoError(t, res.Err)
	assert.NoError(t, res.SpeechErr)
	assert.Equal(t, session.Idle, o.State())

	assert.Equal(t, "en", tr.Calls()[0].Text)
	assert.Equal(t, 1, synth.CallCount("Speak"))
	assert.Equal(t, "Locking the doors.", synth.LastCall().Text)

	var got []session.Change
	for c := range changes {
		got = append(got, c)
	}
	require.Len(t, got, 4)
	expected := []struct{ from, to session.State }{
		{session.Idle, session.Listening},
		{session.Listening, session.Processing},
		{session.Processing, session.Speaking},
		{session.Speaking, session.Idle},
	}
	for i, e := range expected {
		assert.Equal(t, e.from, got[i].From, "change %d", i)
		assert.Equal(t, e.to, got[i].To, "change %d", i)
	}

	last := o.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, res.ID, last.ID)
	assert.Equal(t, 1, o.Metrics().Count())
}

func TestStartCommandWithParameters(t *testing.T) {
	o := newTestOrchestrator(t, NewMockTranscriber("navigate to the airport", 0.9), NewMockSynthesizer())

	res, err := o.Start(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, ModeCommand, res.Mode)
	assert.Equal(t, command.Navigate, res.Command)
	assert.Equal(t, map[string]any{"destination": "the airport"}, res.Parameters())
	assert.Equal(t, "Navigating to the airport.", res.Response)
}

func TestStartAlreadyInProgress(t *testing.T) {
	tr := NewBlockingTranscriber()
	o := newTestOrchestrator(t, tr, NewMockSynthesizer())

	first := startAsync(o, context.Background(), Request{})
	waitForState(t, o, session.Listening)
	require.Eventually(t, func() bool { return tr.CallCount("StopAndTranscribe") == 1 },
		2*time.Second, time.Millisecond)

	res, err := o.Start(context.Background(), Request{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	assert.Equal(t, session.Listening, o.State())
	assert.Equal(t, 1, tr.CallCount("StartRecording"))

	require.NoError(t, o.Cancel())
	out := waitResult(t, first)
	require.NoError(t, out.err)
	assert.Equal(t, OutcomeCancelled, out.res.Outcome)
}

func TestStartTranscriptionFailure(t *testing.T) {
	tr := NewMockTranscriber("", 0)
	tr.TranscribeFunc = func(ctx context.Context) (Transcript, error) {
		return Transcript{}, errors.New("microphone unplugged")
	}
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, tr, synth)

	res, err := o.Start(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeTranscriptionFailed, res.Outcome)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrTranscriptionFailed)
	assert.Contains(t, res.ErrorText(), "microphone unplugged")
	assert.Equal(t, session.Idle, o.State())
	assert.Zero(t, synth.CallCount("Speak"))
}

func TestStartEmptyTranscript(t *testing.T) {
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, NewMockTranscriber("   ", 0.1), synth)

	res, err := o.Start(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeTranscriptionFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrEmptyTranscript)
	assert.Zero(t, synth.CallCount("Speak"))
	assert.Equal(t, session.Idle, o.State())
}

func TestStartRecordingFailure(t *testing.T) {
	tr := NewMockTranscriber("lock the doors", 1)
	tr.StartFunc = func(ctx context.Context, languageHint string) error {
		return errors.New("permission denied")
	}
	o := newTestOrchestrator(t, tr, NewMockSynthesizer())

	res, err := o.Start(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeStartFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrStartFailed)
	assert.Zero(t, tr.CallCount("StopAndTranscribe"))
	assert.Equal(t, session.Idle, o.State())

	// The session is usable again.
	tr.StartFunc = nil
	res, err = o.Start(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommand, res.Outcome)
}

func TestStartListenTimeout(t *testing.T) {
	tr := NewBlockingTranscriber()
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, tr, synth)

	res, err := o.Start(context.Background(), Request{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, OutcomeTranscriptionFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrListenTimeout)
	assert.Equal(t, 1, tr.CallCount("Cancel"))
	assert.Zero(t, synth.CallCount("Speak"))
	assert.Equal(t, session.Idle, o.State())
}

func TestStartNoMatch(t *testing.T) {
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, NewMockTranscriber("lok the dors", 0.8), synth)

	res, err := o.Start(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrNoMatch)
	assert.Equal(t, command.Unknown, res.Command)
	assert.Equal(t, "lock the doors", res.Suggestion)
	assert.True(t, strings.HasPrefix(res.Response, DefaultConfig().NotUnderstoodText))
	assert.Contains(t, res.Response, `"lock the doors"`)
	assert.True(t, res.Spoken)
	assert.Equal(t, 1, synth.CallCount("Speak"))
}

func TestStartFallsBackToConversation(t *testing.T) {
	fb := NewMockFallback("It's sunny and 24 degrees.")
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, NewMockTranscriber("what is the weather like", 0.9), synth, WithFallback(fb))

	res, err := o.Start(context.Background(), Request{Mode: ModeCommand})
	require.NoError(t, err)

	assert.Equal(t, OutcomeConversation, res.Outcome)
	assert.True(t, res.Success)
	assert.Equal(t, command.Unknown, res.Command)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	assert.Equal(t, "It's sunny and 24 degrees.", res.Response)
	assert.Equal(t, "what is the weather like", fb.LastCall().Text)
	assert.Equal(t, "It's sunny and 24 degrees.", synth.LastCall().Text)
}

func TestStartFallbackFailureDegrades(t *testing.T) {
	fb := &MockFallback{RespondFunc: func(ctx context.Context, text string) (string, error) {
		return "", errors.New("rate limited")
	}}
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, NewMockTranscriber("tell me a joke", 0.9), synth, WithFallback(fb))

	res, err := o.Start(context.Background(), Request{Mode: ModeConversational})
	require.NoError(t, err)

	assert.Equal(t, OutcomeConversation, res.Outcome)
	assert.False(t, res.Success)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Err, ErrFallbackFailed)
	assert.Equal(t, DefaultConfig().ApologyText, res.Response)
	assert.True(t, res.Spoken)
}

func TestStartConversationalSkipsClassification(t *testing.T) {
	fb := NewMockFallback("Sure.")
	o := newTestOrchestrator(t, NewMockTranscriber("lock the doors", 0.9), NewMockSynthesizer(), WithFallback(fb))

	res, err := o.Start(context.Background(), Request{Mode: ModeConversational})
	require.NoError(t, err)

	assert.Equal(t, OutcomeConversation, res.Outcome)
	assert.Equal(t, command.Unknown, res.Command)
	assert.Equal(t, 1, fb.CallCount("Respond"))
}

func TestStartSpeechFailureKeepsResponse(t *testing.T) {
	synth := NewMockSynthesizer()
	synth.SpeakFunc = func(ctx context.Context, text string) error {
		return errors.New("audio device busy")
	}
	o := newTestOrchestrator(t, NewMockTranscriber("start the engine", 0.9), synth)

	res, err := o.Start(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCommand, res.Outcome)
	assert.True(t, res.Success)
	assert.Equal(t, "Starting the engine.", res.Response)
	assert.False(t, res.Spoken)
	assert.ErrorIs(t, res.SpeechErr, ErrSynthesisFailed)
	assert.NoError(t, res.Err)
	assert.Equal(t, session.Idle, o.State())
}

func TestStartSynthesizerPanicIsSpeechError(t *testing.T) {
	synth := NewMockSynthesizer()
	synth.SpeakFunc = func(ctx context.Context, text string) error {
		panic("driver crashed")
	}
	o := newTestOrchestrator(t, NewMockTranscriber("help", 0.9), synth)

	res, err := o.Start(context.Background(), Request{})
	require.NoError(t, err)
	assert.ErrorIs(t, res.SpeechErr, ErrSynthesisFailed)
	assert.Equal(t, session.Idle, o.State())
}

func TestStartDictation(t *testing.T) {
	t.Run("silent", func(t *testing.T) {
		synth := NewMockSynthesizer()
		o := newTestOrchestrator(t, NewMockTranscriber("buy milk and eggs", 0.95), synth)

		changes, unsubscribe := o.Subscribe(16)
		res, err := o.Start(context.Background(), Request{Mode: ModeDictation})
		require.NoError(t, err)
		unsubscribe()

		assert.Equal(t, OutcomeDictation, res.Outcome)
		assert.True(t, res.Success)
		assert.Equal(t, "buy milk and eggs", res.Transcript)
		assert.Empty(t, res.Response)
		assert.False(t, res.Spoken)
		assert.Zero(t, synth.CallCount("Speak"))

		for c := range changes {
			assert.NotEqual(t, session.Speaking, c.To)
		}
	})

	t.Run("with confirmation", func(t *testing.T) {
		synth := NewMockSynthesizer()
		cfg := DefaultConfig().WithDictationConfirmation("Got it.")
		o := newTestOrchestrator(t, NewMockTranscriber("buy milk", 0.95), synth, WithConfig(cfg))

		res, err := o.Start(context.Background(), Request{Mode: ModeDictation})
		require.NoError(t, err)
		assert.Equal(t, "Got it.", res.Response)
		assert.True(t, res.Spoken)
		assert.Equal(t, 1, synth.CallCount("Speak"))
	})
}

func TestCancelWhileListening(t *testing.T) {
	tr := NewBlockingTranscriber()
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, tr, synth)

	pending := startAsync(o, context.Background(), Request{})
	waitForState(t, o, session.Listening)

	require.NoError(t, o.Cancel())
	assert.Equal(t, session.Idle, o.State())

	out := waitResult(t, pending)
	require.NoError(t, out.err)
	assert.Equal(t, OutcomeCancelled, out.res.Outcome)
	assert.ErrorIs(t, out.res.Err, ErrCancelled)
	assert.False(t, out.res.Success)
	assert.Equal(t, 1, tr.CallCount("Cancel"))
	assert.Zero(t, synth.CallCount("Speak"))
}

func TestCancelWhileSpeaking(t *testing.T) {
	synth := NewMockSynthesizer()
	synth.SpeakFunc = func(ctx context.Context, text string) error {
		<-ctx.Done()
		return ctx.Err()
	}
	o := newTestOrchestrator(t, NewMockTranscriber("lock the doors", 0.9), synth)

	pending := startAsync(o, context.Background(), Request{})
	waitForState(t, o, session.Speaking)

	require.NoError(t, o.Cancel())

	out := waitResult(t, pending)
	assert.Equal(t, OutcomeCancelled, out.res.Outcome)
	assert.Equal(t, "Locking the doors.", out.res.Response)
	assert.False(t, out.res.Spoken)
	assert.Equal(t, 1, synth.CallCount("Stop"))
	assert.Equal(t, session.Idle, o.State())
}

func TestCancelWhenIdleIsNoop(t *testing.T) {
	tr := NewMockTranscriber("", 0)
	synth := NewMockSynthesizer()
	o := newTestOrchestrator(t, tr, synth)

	assert.NoError(t, o.Cancel())
	assert.Empty(t, tr.Calls())
	assert.Empty(t, synth.Calls())
	assert.Equal(t, session.Idle, o.State())
}

func TestCallerContextCancelled(t *testing.T) {
	tr := NewBlockingTranscriber()
	o := newTestOrchestrator(t, tr, NewMockSynthesizer())

	ctx, cancel := context.WithCancel(context.Background())
	pending := startAsync(o, ctx, Request{})
	waitForState(t, o, session.Listening)
	cancel()

	out := waitResult(t, pending)
	require.NoError(t, out.err)
	assert.Equal(t, OutcomeCancelled, out.res.Outcome)
	assert.ErrorIs(t, out.res.Err, ErrCancelled)
	assert.ErrorIs(t, out.res.Err, context.Canceled)
	assert.Equal(t, session.Idle, o.State())
}

func TestStartInvalidRequest(t *testing.T) {
	tr := NewMockTranscriber("lock the doors", 1)
	o := newTestOrchestrator(t, tr, NewMockSynthesizer())

	_, err := o.Start(context.Background(), Request{Mode: "shouting"})
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = o.Start(context.Background(), Request{Mode: ModeConversational})
	assert.ErrorIs(t, err, ErrNoFallback)

	_, err = o.Start(context.Background(), Request{Timeout: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	assert.Empty(t, tr.Calls())
	assert.Equal(t, session.Idle, o.State())
}

func TestSessionStatesAreExclusive(t *testing.T) {
	o := newTestOrchestrator(t, NewMockTranscriber("turn on the lights", 0.9), NewMockSynthesizer())
	changes, unsubscribe := o.Subscribe(64)

	for i := 0; i < 5; i++ {
		_, err := o.Start(context.Background(), Request{})
		require.NoError(t, err)
	}
	unsubscribe()

	prev := session.Idle
	for c := range changes {
		// Every change starts where the previous one ended.
		assert.Equal(t, prev, c.From)
		prev = c.To
	}
	assert.Equal(t, session.Idle, prev)
}

func receive(t *testing.T, ch <-chan *Result) *Result {
	t.Helper()
	select {
	case res := <-ch:
		require.NotNil(t, res)
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("interaction did not finish")
		return nil
	}
}

func TestBegin(t *testing.T) {
	o := newTestOrchestrator(t, NewMockTranscriber("unlock the doors", 0.9), NewMockSynthesizer())

	done, err := o.Begin(context.Background(), Request{})
	require.NoError(t, err)

	res := receive(t, done)
	assert.Equal(t, OutcomeCommand, res.Outcome)
	assert.Equal(t, command.UnlockDoors, res.Command)
	_, open := <-done
	assert.False(t, open)
	assert.Equal(t, res.ID, o.LastResult().ID)
}

func TestBeginRejectsWhileBusy(t *testing.T) {
	o := newTestOrchestrator(t, NewBlockingTranscriber(), NewMockSynthesizer())

	done, err := o.Begin(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, session.Listening, o.State())

	_, err = o.Begin(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	_, err = o.Begin(context.Background(), Request{Mode: "shouting"})
	assert.ErrorIs(t, err, ErrInvalidMode)

	require.NoError(t, o.Cancel())
	assert.Equal(t, OutcomeCancelled, receive(t, done).Outcome)
}

func TestRestartImmediatelyAfterCancel(t *testing.T) {
	tr := NewBlockingTranscriber()
	o := newTestOrchestrator(t, tr, NewMockSynthesizer())

	for i := 0; i < 50; i++ {
		first, err := o.Begin(context.Background(), Request{})
		require.NoError(t, err)
		waitForState(t, o, session.Listening)

		require.NoError(t, o.Cancel())
		require.Equal(t, session.Idle, o.State())

		second, err := o.Begin(context.Background(), Request{Mode: ModeDictation})
		require.NoError(t, err, "restart %d rejected", i)
		assert.Equal(t, session.Listening, o.State())

		// The cancelled interaction unwinding must not disturb the new one.
		firstRes := receive(t, first)
		assert.Equal(t, OutcomeCancelled, firstRes.Outcome)
		assert.Equal(t, session.Listening, o.State())

		require.NoError(t, o.Cancel())
		secondRes := receive(t, second)
		assert.Equal(t, OutcomeCancelled, secondRes.Outcome)
		assert.Equal(t, ModeDictation, secondRes.Mode)
		assert.Equal(t, secondRes.ID, o.LastResult().ID)
		assert.Equal(t, session.Idle, o.State())
	}
}

func TestListenTimeoutCoversStartRecording(t *testing.T) {
	tr := NewMockTranscriber("lock the doors", 1)
	release := make(chan struct{})
	defer close(release)
	tr.StartFunc = func(ctx context.Context, languageHint string) error {
		<-release
		return nil
	}
	o := newTestOrchestrator(t, tr, NewMockSynthesizer())

	res, err := o.Start(context.Background(), Request{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, OutcomeTranscriptionFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrListenTimeout)
	assert.Zero(t, tr.CallCount("StopAndTranscribe"))
	assert.Equal(t, 1, tr.CallCount("Cancel"))
	assert.Equal(t, session.Idle, o.State())
}
