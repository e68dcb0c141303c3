package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Capture records one utterance at a time.
type Capture interface {
	// Start begins recording.
	Start(ctx context.Context) error

	// Wait blocks until the utterance ends and returns it as a WAV clip.
	// It returns ErrNoAudio when no speech was heard.
	Wait(ctx context.Context) (*AudioInput, error)

	// Abort stops recording and discards the audio.
	Abort() error
}

// CaptureConfig configures PCM capture and end-of-utterance detection.
type CaptureConfig struct {
	// Command is the recorder binary. It must write raw S16LE PCM to stdout.
	Command string `json:"command"`

	// Device is the platform-specific device identifier, e.g. "plughw:1,0".
	Device string `json:"device"`

	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`

	// FrameDuration is the analysis window for the level detector.
	FrameDuration time.Duration `json:"frame_duration"`

	// MaxDuration caps a single utterance.
	MaxDuration time.Duration `json:"max_duration"`

	// SilenceDuration of quiet after speech ends the utterance.
	SilenceDuration time.Duration `json:"silence_duration"`

	// Levels in dBFS. Frames at or above SpeechThresholdDB count as speech;
	// frames below SilenceThresholdDB count as silence.
	SpeechThresholdDB  float64 `json:"speech_threshold_db"`
	SilenceThresholdDB float64 `json:"silence_threshold_db"`
}

// DefaultCaptureConfig returns settings suited to a cabin microphone and Whisper.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Command:            "arecord",
		SampleRate:         16000,
		Channels:           1,
		FrameDuration:      20 * time.Millisecond,
		MaxDuration:        8 * time.Second,
		SilenceDuration:    800 * time.Millisecond,
		SpeechThresholdDB:  -35,
		SilenceThresholdDB: -45,
	}
}

// Validate checks that the configuration is usable.
func (c CaptureConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("stt: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("stt: channels must be positive, got %d", c.Channels)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("stt: frame_duration must be positive, got %v", c.FrameDuration)
	}
	if c.MaxDuration < c.FrameDuration {
		return fmt.Errorf("stt: max_duration %v shorter than one frame", c.MaxDuration)
	}
	if c.SilenceThresholdDB > c.SpeechThresholdDB {
		return fmt.Errorf("stt: silence threshold %.1f above speech threshold %.1f", c.SilenceThresholdDB, c.SpeechThresholdDB)
	}
	return nil
}

// FrameBytes returns the size of one analysis frame in bytes.
func (c CaptureConfig) FrameBytes() int {
	samples := int(float64(c.SampleRate) * c.FrameDuration.Seconds())
	return max(1, samples) * c.Channels * 2
}

func (c CaptureConfig) bytesToDuration(n int) time.Duration {
	samples := n / (2 * c.Channels)
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// opener starts a PCM stream. Closing the reader must stop the producer.
type opener func(ctx context.Context) (io.ReadCloser, error)

// PCMCapture reads raw PCM from a stream and ends the utterance on silence.
type PCMCapture struct {
	cfg    CaptureConfig
	open   opener
	logger *slog.Logger

	mu     sync.Mutex
	active *recording
}

type recording struct {
	cancel context.CancelFunc
	ended  chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pcm     bytes.Buffer
	heard   bool
	err     error
	aborted bool
	endOnce sync.Once
}

func (r *recording) end() {
	r.endOnce.Do(func() { close(r.ended) })
}

// NewCommandCapture records with an external program, arecord by default.
func NewCommandCapture(cfg CaptureConfig, logger *slog.Logger) *PCMCapture {
	return newPCMCapture(cfg, logger, func(ctx context.Context) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, cfg.Command, recorderArgs(cfg)...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("stt: start %s: %w", cfg.Command, err)
		}
		return &cmdReader{ReadCloser: stdout, cmd: cmd}, nil
	})
}

// NewReaderCapture records from an in-memory or file stream of S16LE PCM.
// Abort waits for the pending read, so r should not block indefinitely.
func NewReaderCapture(cfg CaptureConfig, logger *slog.Logger, r io.Reader) *PCMCapture {
	return newPCMCapture(cfg, logger, func(ctx context.Context) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	})
}

func newPCMCapture(cfg CaptureConfig, logger *slog.Logger, open opener) *PCMCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &PCMCapture{
		cfg:    cfg,
		open:   open,
		logger: logger.With("component", "stt.capture"),
	}
}

func recorderArgs(cfg CaptureConfig) []string {
	args := []string{"-q", "-t", "raw", "-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
	}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return args
}

type cmdReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *cmdReader) Close() error {
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.ReadCloser.Close()
	_ = r.cmd.Wait()
	return nil
}

// Start begins recording.
func (c *PCMCapture) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return ErrAlreadyRecording
	}

	recCtx, cancel := context.WithCancel(ctx)
	rc, err := c.open(recCtx)
	if err != nil {
		cancel()
		return err
	}

	rec := &recording{
		cancel: cancel,
		ended:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.active = rec
	go c.pump(recCtx, rec, rc)

	c.logger.Debug("recording started", "sample_rate", c.cfg.SampleRate, "device", c.cfg.Device)
	return nil
}

func (c *PCMCapture) pump(ctx context.Context, rec *recording, rc io.ReadCloser) {
	defer close(rec.done)
	defer rec.end()
	defer rc.Close()

	ep := newEndpointer(c.cfg)
	frame := make([]byte, c.cfg.FrameBytes())
	for {
		n, err := io.ReadFull(rc, frame)
		if n > 0 {
			ended := ep.feed(frame[:n])
			rec.mu.Lock()
			rec.pcm.Write(frame[:n])
			rec.heard = ep.heard
			rec.mu.Unlock()
			if ended {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
				rec.mu.Lock()
				rec.err = err
				rec.mu.Unlock()
			}
			return
		}
	}
}

// Wait blocks until the utterance ends, then returns it as WAV.
func (c *PCMCapture) Wait(ctx context.Context) (*AudioInput, error) {
	c.mu.Lock()
	rec := c.active
	c.mu.Unlock()
	if rec == nil {
		return nil, ErrNotRecording
	}

	select {
	case <-rec.ended:
	case <-ctx.Done():
		c.release(rec, true)
		return nil, ctx.Err()
	}
	c.release(rec, false)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	switch {
	case rec.aborted:
		return nil, ErrCancelled
	case rec.err != nil:
		return nil, fmt.Errorf("stt: read audio: %w", rec.err)
	case !rec.heard || rec.pcm.Len() == 0:
		return nil, ErrNoAudio
	}

	pcm := rec.pcm.Bytes()
	c.logger.Debug("recording finished", "bytes", len(pcm))
	return &AudioInput{
		Data:     EncodeWAV(pcm, c.cfg.SampleRate, c.cfg.Channels),
		Filename: "utterance.wav",
		Duration: c.cfg.bytesToDuration(len(pcm)),
	}, nil
}

// Abort stops recording and discards the audio.
func (c *PCMCapture) Abort() error {
	c.mu.Lock()
	rec := c.active
	c.mu.Unlock()
	if rec == nil {
		return nil
	}
	c.release(rec, true)
	return nil
}

func (c *PCMCapture) release(rec *recording, aborted bool) {
	if aborted {
		rec.mu.Lock()
		rec.aborted = true
		rec.mu.Unlock()
	}
	rec.cancel()
	<-rec.done

	c.mu.Lock()
	if c.active == rec {
		c.active = nil
	}
	c.mu.Unlock()
}

// endpointer decides when an utterance is over from frame levels.
type endpointer struct {
	cfg     CaptureConfig
	elapsed time.Duration
	quiet   time.Duration
	heard   bool
}

func newEndpointer(cfg CaptureConfig) *endpointer {
	return &endpointer{cfg: cfg}
}

// feed consumes one frame and reports whether the utterance has ended.
func (e *endpointer) feed(frame []byte) bool {
	d := e.cfg.bytesToDuration(len(frame))
	e.elapsed += d

	level := LevelDB(frame)
	switch {
	case level >= e.cfg.SpeechThresholdDB:
		e.heard = true
		e.quiet = 0
	case level < e.cfg.SilenceThresholdDB && e.heard:
		e.quiet += d
	}

	if e.heard && e.quiet >= e.cfg.SilenceDuration {
		return true
	}
	return e.elapsed >= e.cfg.MaxDuration
}

// LevelDB returns the RMS level of S16LE PCM in dBFS. Silence is -120.
func LevelDB(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return -120
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	rms := math.Sqrt(sum/float64(n)) / 32768
	if rms <= 1e-6 {
		return -120
	}
	return 20 * math.Log10(rms)
}

// EncodeWAV wraps S16LE PCM in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	blockAlign := channels * 2
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(channels))
	_ = binary.Write(&buf, le, uint32(sampleRate))
	_ = binary.Write(&buf, le, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, le, uint16(blockAlign))
	_ = binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// Verify PCMCapture implements Capture at compile time.
var _ Capture = (*PCMCapture)(nil)
