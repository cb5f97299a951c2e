package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config selects the external commands used for local playback and capture.
// "{file}" in an argument list is replaced by the audio file path.
type Config struct {
	PlayCommand   []string
	RecordCommand []string

	// RecordFormat is the container the record command writes.
	RecordFormat string

	// StopTimeout bounds how long Stop waits for the recorder to exit
	// after being interrupted.
	StopTimeout time.Duration
}

// DefaultConfig uses ffplay for playback and sox for capture.
func DefaultConfig() Config {
	return Config{
		PlayCommand:   []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "{file}"},
		RecordCommand: []string{"rec", "-q", "-c", "1", "-r", "16000", "{file}"},
		RecordFormat:  "wav",
		StopTimeout:   3 * time.Second,
	}
}

// ConfigFromEnv reads LINGO_PLAY_CMD and LINGO_RECORD_CMD (space separated).
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if c := os.Getenv("LINGO_PLAY_CMD"); c != "" {
		cfg.PlayCommand = strings.Fields(c)
	}
	if c := os.Getenv("LINGO_RECORD_CMD"); c != "" {
		cfg.RecordCommand = strings.Fields(c)
	}
	if f := os.Getenv("LINGO_RECORD_FORMAT"); f != "" {
		cfg.RecordFormat = f
	}
	return cfg
}

// Validate checks that both commands reference the audio file.
func (c Config) Validate() error {
	if err := checkCommand("play", c.PlayCommand); err != nil {
		return err
	}
	return checkCommand("record", c.RecordCommand)
}

func checkCommand(name string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%s command is empty", name)
	}
	for _, a := range argv[1:] {
		if strings.Contains(a, "{file}") {
			return nil
		}
	}
	return fmt.Errorf("%s command must contain a {file} argument", name)
}

func expand(argv []string, file string) (string, []string) {
	args := make([]string, 0, len(argv)-1)
	for _, a := range argv[1:] {
		args = append(args, strings.ReplaceAll(a, "{file}", file))
	}
	return argv[0], args
}

// ExecPlayer plays clips by running an external player on a temp file.
type ExecPlayer struct {
	argv []string
}

// NewExecPlayer creates a player from cfg.PlayCommand.
func NewExecPlayer(cfg Config) *ExecPlayer {
	return &ExecPlayer{argv: cfg.PlayCommand}
}

// Play writes the clip to disk and runs the player until it exits. The
// process is killed when ctx is cancelled.
func (p *ExecPlayer) Play(ctx context.Context, clip *Clip) error {
	ext := clip.Format
	if ext == "" {
		ext = "mp3"
	}
	f, err := os.CreateTemp("", "lingo-clip-*."+ext)
	if err != nil {
		return fmt.Errorf("create clip file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(clip.Data); err != nil {
		f.Close()
		return fmt.Errorf("write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close clip file: %w", err)
	}

	name, args := expand(p.argv, f.Name())
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run %s: %w", name, err)
	}
	return nil
}

// ExecRecorder captures audio by running an external recorder that writes
// to a temp file until it is interrupted.
type ExecRecorder struct {
	cfg Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	path    string
	started time.Time
	exited  chan error
}

// NewExecRecorder creates a recorder from cfg.RecordCommand.
func NewExecRecorder(cfg Config) *ExecRecorder {
	return &ExecRecorder{cfg: cfg}
}

// Start launches the recorder process.
func (r *ExecRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return ErrMicrophoneBusy
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "lingo-rec-")
	if err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(dir, "turn."+r.cfg.RecordFormat)

	name, args := expand(r.cfg.RecordCommand, path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("start %s: %w", name, err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	r.cmd = cmd
	r.path = path
	r.started = time.Now()
	r.exited = exited
	return nil
}

// Stop interrupts the recorder, waits for it to flush and returns the file
// contents. The temp file is removed.
func (r *ExecRecorder) Stop(ctx context.Context) (*Recording, error) {
	r.mu.Lock()
	cmd, path, started, exited := r.cmd, r.path, r.started, r.exited
	r.cmd = nil
	r.mu.Unlock()

	if cmd == nil {
		return nil, errors.New("recorder is not running")
	}
	defer os.RemoveAll(filepath.Dir(path))

	stopped := time.Now()
	_ = cmd.Process.Signal(os.Interrupt)

	timeout := r.cfg.StopTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	select {
	case <-exited:
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-exited
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-exited
		return nil, ctx.Err()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return &Recording{
		StartedAt: started,
		StoppedAt: stopped,
		Audio:     data,
		Format:    r.cfg.RecordFormat,
	}, nil
}
