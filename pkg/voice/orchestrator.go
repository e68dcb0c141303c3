package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/session"
)

// Orchestrator sequences listening, recognition and speaking for one session.
// Its methods are safe for concurrent use, but only one interaction runs at a time.
type Orchestrator struct {
	transcriber Transcriber
	synthesizer Synthesizer
	fallback    ConversationalFallback
	classifier  *command.Classifier
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
	machine     *session.Machine
	metrics     *MetricsCollector

	mu      sync.Mutex
	current *run
	seq     uint64
	last    *Result
	lastSeq uint64
}

// run is the bookkeeping of one in-flight interaction.
type run struct {
	ctx       context.Context
	cancel    context.CancelFunc
	seq       uint64
	cancelled bool // guarded by Orchestrator.mu
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFallback sets the conversational fallback.
func WithFallback(f ConversationalFallback) Option {
	return func(o *Orchestrator) { o.fallback = f }
}

// WithClassifier sets the command classifier. The default uses command.DefaultRegistry.
func WithClassifier(c *command.Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics sets the collector that receives phase timings.
func WithMetrics(m *MetricsCollector) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// New creates an Orchestrator in the Idle state.
func New(t Transcriber, s Synthesizer, opts ...Option) (*Orchestrator, error) {
	if t == nil {
		return nil, errors.New("voice: transcriber required")
	}
	if s == nil {
		return nil, errors.New("voice: synthesizer required")
	}

	o := &Orchestrator{
		transcriber: t,
		synthesizer: s,
		cfg:         DefaultConfig(),
		logger:      slog.Default(),
		now:         time.Now,
		metrics:     NewMetricsCollector(100),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.classifier == nil {
		o.classifier = command.NewClassifier(nil, command.WithClock(o.now))
	}
	o.machine = session.NewMachine(o.now)
	o.logger = o.logger.With("component", "voice")

	return o, nil
}

// State returns the current session state.
func (o *Orchestrator) State() session.State {
	return o.machine.State()
}

// Subscribe streams session state changes. See session.Machine.Subscribe.
func (o *Orchestrator) Subscribe(buffer int) (<-chan session.Change, func()) {
	return o.machine.Subscribe(buffer)
}

// LastResult returns the result of the most recently finished interaction, or nil.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return nil
	}
	res := *o.last
	return &res
}

// Metrics returns the phase timing collector.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Classifier returns the classifier used in command mode.
func (o *Orchestrator) Classifier() *command.Classifier {
	return o.classifier
}

// Start runs one interaction to completion and returns its result.
//
// The returned error is reserved for caller mistakes: ErrAlreadyInProgress when
// another interaction is running, and invalid requests. Every other outcome,
// including collaborator failures and cancellation, is reported in the Result.
// The session is Idle again whenever Start returns or panics.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Result, error) {
	r, res, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	o.execute(r, req, res)
	return res, nil
}

// Begin starts an interaction and runs it in the background. It returns the
// same errors as Start, before anything runs, so a nil error means the
// session has left Idle. The result is delivered on the returned channel,
// which is then closed.
func (o *Orchestrator) Begin(ctx context.Context, req Request) (<-chan *Result, error) {
	r, res, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	done := make(chan *Result, 1)
	go func() {
		defer close(done)
		o.execute(r, req, res)
		done <- res
	}()
	return done, nil
}

// Cancel stops the running interaction if it is Listening or Speaking.
// The session moves to Idle immediately and a new interaction may start
// at once; the cancelled one still returns a cancelled result.
// In any other state Cancel does nothing.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	_, err := o.interruptLocked(o.current)
	return err
}

func (o *Orchestrator) prepare(ctx context.Context, req Request) (*run, *Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = o.cfg.DefaultMode
	}
	if !mode.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if mode == ModeConversational && o.fallback == nil {
		return nil, nil, ErrNoFallback
	}
	if req.Timeout < 0 {
		return nil, nil, ErrInvalidTimeout
	}

	r, err := o.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	res := &Result{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: o.now(),
	}
	return r, res, nil
}

func (o *Orchestrator) execute(r *run, req Request, res *Result) {
	defer func() {
		if p := recover(); p != nil {
			o.finish(r, nil)
			panic(p)
		}
	}()

	o.logger.Debug("interaction started", "id", res.ID, "mode", res.Mode)
	o.run(r, req, res)

	res.Duration = o.now().Sub(res.StartedAt)
	res.Metrics.Total = res.Duration
	o.finish(r, res)
	o.logResult(res)
}

func (o *Orchestrator) begin(ctx context.Context) (*run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		return nil, ErrAlreadyInProgress
	}
	if _, err := o.machine.Fire(session.EventStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAlreadyInProgress, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.seq++
	r := &run{ctx: runCtx, cancel: cancel, seq: o.seq}
	o.current = r
	return r, nil
}

// finish releases r. A nil res keeps the previous LastResult, as does the
// result of a cancelled run that a newer interaction has already replaced.
func (o *Orchestrator) finish(r *run, res *Result) {
	r.cancel()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == r {
		o.machine.Reset()
		o.current = nil
	}
	if res == nil {
		return
	}
	o.metrics.Record(res.Metrics)
	if r.seq > o.lastSeq {
		o.last = res
		o.lastSeq = r.seq
	}
}

// advance fires event on behalf of r. It reports false when r was cancelled,
// in which case r no longer owns the session.
func (o *Orchestrator) advance(r *run, event session.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r.cancelled {
		return false
	}
	if _, err := o.machine.Fire(event); err != nil {
		panic(err)
	}
	return true
}

// interrupt cancels r if its session is Listening or Speaking.
func (o *Orchestrator) interrupt(r *run) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.interruptLocked(r)
}

// interruptLocked moves r's session to Idle, releases it for the next
// interaction and stops the busy collaborator. The collaborator is stopped
// before mu is released so it cannot abort a newer interaction.
func (o *Orchestrator) interruptLocked(r *run) (bool, error) {
	if r.cancelled || o.current != r {
		return false, nil
	}
	state := o.machine.State()
	if !state.Cancellable() {
		return false, nil
	}
	if _, ok, err := o.machine.FireIf(state, session.EventCancel); err != nil || !ok {
		return false, nil
	}
	r.cancelled = true
	o.current = nil
	r.cancel()
	return true, o.stopCollaborator(state)
}

func (o *Orchestrator) stopCollaborator(state session.State) error {
	var err error
	switch state {
	case session.Listening:
		err = o.transcriber.Cancel()
	case session.Speaking:
		err = o.synthesizer.Stop()
	}
	if err != nil {
		o.logger.Warn("collaborator stop failed", "state", state, "error", err)
	}
	return err
}

// stopped reports whether r has been cancelled, either through Cancel or by
// the caller's context, and records the cancellation in res.
func (o *Orchestrator) stopped(r *run, res *Result) bool {
	o.mu.Lock()
	cancelled := r.cancelled
	o.mu.Unlock()

	if cancelled {
		res.fail(OutcomeCancelled, ErrCancelled)
		return true
	}
	if r.ctx.Err() == nil {
		return false
	}

	if ok, _ := o.interrupt(r); !ok {
		o.advance(r, session.EventFail)
	}
	res.fail(OutcomeCancelled, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(r.ctx)))
	return true
}

func (o *Orchestrator) run(r *run, req Request, res *Result) {
	ctx := r.ctx

	// Listening
	listenStart := o.now()
	transcript, err := o.listen(ctx, req)
	res.Metrics.Listen = o.now().Sub(listenStart)
	if o.stopped(r, res) {
		return
	}
	if err != nil {
		o.advance(r, session.EventFail)
		if errors.Is(err, ErrStartFailed) {
			res.fail(OutcomeStartFailed, err)
		} else {
			res.fail(OutcomeTranscriptionFailed, err)
		}
		return
	}

	text := strings.TrimSpace(transcript.Text)
	res.Transcript = text
	res.TranscriptConfidence = transcript.Confidence
	if text == "" {
		o.advance(r, session.EventFail)
		res.fail(OutcomeTranscriptionFailed, fmt.Errorf("%w: %w", ErrTranscriptionFailed, ErrEmptyTranscript))
		return
	}

	// Processing
	if !o.advance(r, session.EventTranscribed) {
		o.stopped(r, res)
		return
	}
	processStart := o.now()
	o.process(r, res)
	res.Metrics.Process = o.now().Sub(processStart)
	if o.stopped(r, res) {
		return
	}

	if res.Response == "" {
		o.advance(r, session.EventComplete)
		return
	}

	// Speaking
	if !o.advance(r, session.EventRespond) {
		o.stopped(r, res)
		return
	}
	speakStart := o.now()
	_, err = await(ctx, func() (struct{}, error) {
		return struct{}{}, o.synthesizer.Speak(ctx, res.Response)
	})
	res.Metrics.Speak = o.now().Sub(speakStart)
	if o.stopped(r, res) {
		return
	}
	if err != nil {
		res.SpeechErr = fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
		o.logger.Warn("speech failed", "id", res.ID, "error", err)
		o.advance(r, session.EventFail)
		return
	}
	res.Spoken = true
	o.advance(r, session.EventComplete)
}

// listen records and transcribes one utterance. The request or config
// timeout bounds the whole phase, StartRecording included.
func (o *Orchestrator) listen(ctx context.Context, req Request) (Transcript, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = o.cfg.ListenTimeout
	}
	listenCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		listenCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := await(listenCtx, func() (struct{}, error) {
		return struct{}{}, o.transcriber.StartRecording(ctx, req.LanguageHint)
	})
	if err != nil && listenCtx.Err() == nil {
		return Transcript{}, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	var transcript Transcript
	if err == nil {
		transcript, err = await(listenCtx, func() (Transcript, error) {
			if err := listenCtx.Err(); err != nil {
				return Transcript{}, err
			}
			return o.transcriber.StopAndTranscribe(listenCtx)
		})
	}
	if err == nil {
		return transcript, nil
	}
	if ctx.Err() == nil && errors.Is(listenCtx.Err(), context.DeadlineExceeded) {
		if cerr := o.transcriber.Cancel(); cerr != nil {
			o.logger.Warn("transcriber cancel after timeout failed", "error", cerr)
		}
		return Transcript{}, fmt.Errorf("%w: %w", ErrTranscriptionFailed, ErrListenTimeout)
	}
	return Transcript{}, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
}

// process resolves the transcript into a response while the session is Processing.
func (o *Orchestrator) process(r *run, res *Result) {
	switch res.Mode {
	case ModeDictation:
		res.Outcome = OutcomeDictation
		res.Success = true
		res.Response = o.cfg.DictationConfirmation

	case ModeConversational:
		o.converse(r, res)

	case ModeCommand:
		rec := o.classifier.Recognize(res.Transcript)
		res.Command = rec.Command
		res.Confidence = rec.Confidence
		res.Params = rec.Params

		if rec.IsSuccess() {
			res.Outcome = OutcomeCommand
			res.Success = true
			res.Response = Confirmation(rec.Command, rec.Params)
			return
		}
		if o.fallback != nil {
			o.converse(r, res)
			return
		}

		res.fail(OutcomeNoMatch, ErrNoMatch)
		res.Response = o.cfg.NotUnderstoodText
		if o.cfg.SuggestOnNoMatch {
			if s := o.classifier.Registry().Suggest(res.Transcript, 1); len(s) > 0 {
				res.Suggestion = s[0].Phrase
				res.Response += fmt.Sprintf(" Did you mean %q?", s[0].Phrase)
			}
		}
	}
}

func (o *Orchestrator) converse(r *run, res *Result) {
	res.Outcome = OutcomeConversation

	reply, err := await(r.ctx, func() (string, error) {
		return o.fallback.Respond(r.ctx, res.Transcript)
	})
	if r.ctx.Err() != nil {
		return
	}

	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = errEmptyReply
	}
	if err != nil {
		o.logger.Warn("conversational fallback failed", "id", res.ID, "error", err)
		res.Success = false
		res.Degraded = true
		res.Err = fmt.Errorf("%w: %w", ErrFallbackFailed, err)
		res.Response = o.cfg.ApologyText
		return
	}

	res.Success = true
	res.Response = reply
}

func (o *Orchestrator) logResult(res *Result) {
	attrs := []any{
		"id", res.ID,
		"mode", res.Mode,
		"outcome", res.Outcome,
		"latency", res.Metrics.FormatLatency(),
	}
	if res.Mode == ModeCommand {
		attrs = append(attrs, "command", res.Command, "confidence", res.Confidence)
	}
	switch {
	case res.Outcome == OutcomeStartFailed || res.Outcome == OutcomeTranscriptionFailed:
		o.logger.Warn("interaction failed", append(attrs, "error", res.Err)...)
	case res.SpeechErr != nil || res.Degraded:
		o.logger.Warn("interaction degraded", attrs...)
	default:
		o.logger.Info("interaction finished", attrs...)
	}
}

// await runs fn in its own goroutine and returns its result, or ctx.Err() if
// ctx ends first. A panicking collaborator is reported as an error.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("voice: collaborator panic: %v", p)}
			}
		}()
		v, err := fn()
		done <- outcome{v: v, err: err}
	}()

	select {
	case out := <-done:
		return out.v, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
