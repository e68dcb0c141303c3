package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Player renders synthesized audio. Play blocks until playback finishes or
// ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio *AudioResult) error
}

// CommandPlayer pipes audio into an external program such as mpg123 or ffplay.
type CommandPlayer struct {
	name string
	args []string
}

// NewCommandPlayer returns a player that runs name with args for every clip,
// writing the encoded audio to the process's stdin.
func NewCommandPlayer(name string, args ...string) *CommandPlayer {
	return &CommandPlayer{name: name, args: args}
}

// Play runs the command and waits for it. Cancelling ctx kills the process.
func (p *CommandPlayer) Play(ctx context.Context, audio *AudioResult) error {
	if audio == nil || len(audio.Audio) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, p.name, p.args...)
	cmd.Stdin = bytes.NewReader(audio.Audio)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("tts: %s: %w: %s", p.name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// DirPlayer writes each clip to a directory instead of a speaker. It is
// useful on headless hosts and for inspecting what would have been said.
type DirPlayer struct {
	dir string

	mu   sync.Mutex
	last string
}

// NewDirPlayer creates the directory if needed.
func NewDirPlayer(dir string) (*DirPlayer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create output dir: %w", err)
	}
	return &DirPlayer{dir: dir}, nil
}

// Play writes the clip as <uuid>.<ext>.
func (p *DirPlayer) Play(ctx context.Context, audio *AudioResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if audio == nil {
		return nil
	}
	name := filepath.Join(p.dir, uuid.NewString()+"."+audio.Format.Encoding.Extension())
	if err := os.WriteFile(name, audio.Audio, 0o644); err != nil {
		return fmt.Errorf("tts: write clip: %w", err)
	}
	p.mu.Lock()
	p.last = name
	p.mu.Unlock()
	return nil
}

// LastFile returns the path of the most recently written clip.
func (p *DirPlayer) LastFile() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Verify players implement Player at compile time.
var (
	_ Player = (*CommandPlayer)(nil)
	_ Player = (*DirPlayer)(nil)
)
