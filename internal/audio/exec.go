package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	eventBuffer  = 16
	probeTimeout = 10 * time.Second

	placeholderSource = "{source}"
	placeholderStart  = "{start}"
)

// Presets are argument templates for known players.
var Presets = map[string][]string{
	"mpv":    {"--no-video", "--really-quiet", "--start=" + placeholderStart, placeholderSource},
	"ffplay": {"-nodisp", "-autoexit", "-loglevel", "quiet", "-ss", placeholderStart, placeholderSource},
}

// autoOrder is the lookup order for the "auto" command.
var autoOrder = []string{"mpv", "ffplay"}

var ErrNoPlayer = errors.New("no supported audio player found on PATH")

// ExecPlayer plays each segment of a source in an external process. Pausing
// stops the process and remembers the elapsed offset; resuming and seeking
// start a new process at the offset.
type ExecPlayer struct {
	command string
	args    []string
	probe   string

	mu       sync.Mutex
	source   string
	gen      uint64
	offset   time.Duration
	started  time.Time
	cmd      *exec.Cmd
	duration time.Duration
	closed   bool
	events   chan Event
}

// NewExecPlayer resolves command ("auto", a preset name, or any executable)
// and returns a player for it. Empty args select the preset template, or
// just the source for unknown commands. Templates may use {source} and
// {start} (seconds).
func NewExecPlayer(command string, args []string) (*ExecPlayer, error) {
	if command == "" || command == "auto" {
		for _, name := range autoOrder {
			if _, err := exec.LookPath(name); err == nil {
				command = name
				break
			}
		}
		if command == "" || command == "auto" {
			return nil, ErrNoPlayer
		}
	}

	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("find player %q: %w", command, err)
	}

	if len(args) == 0 {
		if preset, ok := Presets[command]; ok {
			args = preset
		} else {
			args = []string{placeholderSource}
		}
	}

	probe, _ := exec.LookPath("ffprobe")

	return &ExecPlayer{
		command: path,
		args:    args,
		probe:   probe,
		events:  make(chan Event, eventBuffer),
	}, nil
}

// Command returns the resolved player executable.
func (p *ExecPlayer) Command() string { return p.command }

func (p *ExecPlayer) Load(source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stop()
	p.gen++
	p.source = source
	p.offset = 0
	p.duration = 0
	if p.probe != "" && source != "" {
		go p.probeDuration(source)
	}
	return nil
}

func (p *ExecPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &PlaybackError{Source: p.source, Err: errors.New("player closed")}
	}
	if p.source == "" {
		return &PlaybackError{Err: ErrNoSource}
	}
	if p.cmd != nil {
		return nil
	}
	if err := p.start(); err != nil {
		return &PlaybackError{Source: p.source, Err: err}
	}
	return nil
}

func (p *ExecPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
	return nil
}

func (p *ExecPlayer) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}

	running := p.cmd != nil
	p.stop()
	p.offset = pos
	if running {
		if err := p.start(); err != nil {
			return &PlaybackError{Source: p.source, Err: err}
		}
	}
	return nil
}

func (p *ExecPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.offset
	if p.cmd != nil {
		pos += time.Since(p.started)
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (p *ExecPlayer) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *ExecPlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *ExecPlayer) Events() <-chan Event { return p.events }

// Close stops playback and closes the event channel.
func (p *ExecPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.stop()
	p.closed = true
	close(p.events)
	return nil
}

// start launches a process at the current offset. Caller holds mu.
func (p *ExecPlayer) start() error {
	cmd := exec.Command(p.command, expandArgs(p.args, p.source, p.offset)...)
	if err := cmd.Start(); err != nil {
		return err
	}
	p.cmd = cmd
	p.started = time.Now()
	go p.wait(cmd, p.source, p.gen)
	return nil
}

// stop kills the running process, if any, keeping the elapsed offset.
// Caller holds mu.
func (p *ExecPlayer) stop() {
	if p.cmd == nil {
		return
	}
	cmd := p.cmd
	p.cmd = nil
	p.offset += time.Since(p.started)
	_ = cmd.Process.Kill()
}

func (p *ExecPlayer) wait(cmd *exec.Cmd, source string, gen uint64) {
	err := cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Stopped by Load, Pause, Seek or Close.
	if p.cmd != cmd {
		return
	}
	p.cmd = nil
	p.offset = 0

	ev := Event{Kind: Ended, Source: source, Gen: gen}
	if err != nil {
		ev = Event{Kind: Failed, Source: source, Gen: gen, Err: err}
	}
	p.emit(ev)
}

// emit never blocks. Caller holds mu.
func (p *ExecPlayer) emit(ev Event) {
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}

func (p *ExecPlayer) probeDuration(source string) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		source,
	).Output()
	if err != nil {
		return
	}
	d, ok := parseSeconds(string(out))
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == source {
		p.duration = d
	}
}

func expandArgs(tmpl []string, source string, start time.Duration) []string {
	secs := strconv.FormatFloat(start.Seconds(), 'f', 3, 64)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		a = strings.ReplaceAll(a, placeholderSource, source)
		a = strings.ReplaceAll(a, placeholderStart, secs)
		out[i] = a
	}
	return out
}

func parseSeconds(s string) (time.Duration, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}
