// Package session supervises the external database process: it spawns the
// executable, forwards queries to its stdin, and collects its stdout and
// stderr lines into a queue the UI drains on its own schedule.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"queryconsole/internal/log"
	"queryconsole/internal/queue"
)

// DefaultTerminateTimeout is how long Terminate waits after the graceful
// request before it kills the child.
const DefaultTerminateTimeout = time.Second

// Sentinel errors for the session package.
var (
	// ErrExecutableNotFound is returned when the executable is absent from the working directory.
	ErrExecutableNotFound = errors.New("executable not found")

	// ErrAlreadyStarted is returned when Start is called on a session that has already spawned a child.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotRunning is returned when a query is sent to a child that is missing or has exited.
	ErrNotRunning = errors.New("process not running")

	// ErrTerminated is returned when Start is called after Terminate.
	ErrTerminated = errors.New("session terminated")
)

// State is the lifecycle stage of a session.
type State int32

const (
	// StateNotStarted means no child has been spawned, either because Start
	// was never called or because it failed.
	StateNotStarted State = iota
	// StateRunning means the child is alive.
	StateRunning
	// StateExited means the child has terminated. There is no way back.
	StateExited
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Options configures a Session.
type Options struct {
	// Dir is the directory searched for the executable and used as the
	// child's working directory. Empty means the current directory.
	Dir string

	// Name is the executable's file name, without platform suffix.
	Name string

	// Args are passed to the executable.
	Args []string

	// TerminateTimeout bounds the wait between the graceful request and the
	// forced kill. Zero means DefaultTerminateTimeout.
	TerminateTimeout time.Duration
}

// Session owns one child process, its pipes, and the queue its output lands in.
// At most one child is ever spawned per Session.
type Session struct {
	id   string
	opts Options

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	done       chan struct{}
	terminated bool

	state    atomic.Int32
	running  atomic.Bool
	exitErr  atomic.Pointer[error]
	messages *queue.Queue[Message]

	terminateOnce sync.Once
	terminateErr  error
}

// New creates a Session. Nothing is spawned until Start.
func New(opts Options) *Session {
	if opts.TerminateTimeout <= 0 {
		opts.TerminateTimeout = DefaultTerminateTimeout
	}
	s := &Session{
		id:       uuid.New().String(),
		opts:     opts,
		messages: queue.New[Message](),
	}
	s.state.Store(int32(StateNotStarted))
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Name returns the configured executable name.
func (s *Session) Name() string {
	return s.opts.Name
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Start locates and spawns the executable with stdin, stdout and stderr
// redirected, then starts one reader goroutine per output stream.
// Once Terminate has been called Start refuses with ErrTerminated.
// When the executable is missing the error wraps ErrExecutableNotFound and no
// goroutines are started.
func (s *Session) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return 0, ErrTerminated
	}
	if s.cmd != nil {
		return 0, ErrAlreadyStarted
	}

	path, err := Locate(s.opts.Dir, s.opts.Name)
	if err != nil {
		log.Warn(log.CatSession, "executable not found", "session", s.id, "dir", s.opts.Dir, "name", s.opts.Name)
		return 0, err
	}

	cmd := exec.Command(path, s.opts.Args...) //nolint:gosec // G204: path is the configured database executable
	cmd.Dir = s.opts.Dir
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("stdin pipe: %w", err)
	}

	// Plain os.Pipe ends instead of StdoutPipe/StderrPipe: Wait must not close
	// the read side while readers still have buffered lines to deliver.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return 0, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		closeAll(stdoutR, stdoutW)
		return 0, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		log.ErrorErr(log.CatSession, "start failed", err, "session", s.id, "path", path)
		return 0, fmt.Errorf("start %s: %w", path, err)
	}
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)

	s.cmd = cmd
	s.stdin = stdin
	s.done = make(chan struct{})
	s.running.Store(true)
	s.state.Store(int32(StateRunning))

	go s.waitLoop(cmd, s.done)
	go s.readLoop(stdoutR, SourceStdout)
	go s.readLoop(stderrR, SourceStderr)

	pid := cmd.Process.Pid
	log.Info(log.CatSession, "child started", "session", s.id, "path", path, "pid", pid)
	return pid, nil
}

// waitLoop is the only caller of cmd.Wait.
func (s *Session) waitLoop(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	if err != nil {
		s.exitErr.Store(&err)
	}
	s.state.Store(int32(StateExited))
	close(done)
	log.Info(log.CatSession, "child exited", "session", s.id, "exit_code", cmd.ProcessState.ExitCode())
}

// Alive reports whether a child was spawned and has not exited yet.
func (s *Session) Alive() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// ExitErr returns the error cmd.Wait reported, if the child has exited
// with one.
func (s *Session) ExitErr() error {
	if p := s.exitErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Send writes query and a single newline to the child's stdin in one
// unbuffered write.
func (s *Session) Send(query string) error {
	if !s.Alive() {
		return ErrNotRunning
	}

	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()

	if _, err := io.WriteString(stdin, query+"\n"); err != nil {
		log.ErrorErr(log.CatSession, "write to stdin failed", err, "session", s.id)
		return fmt.Errorf("write to %s: %w", s.opts.Name, err)
	}
	log.Debug(log.CatSession, "query sent", "session", s.id, "bytes", len(query)+1)
	return nil
}

// Drain returns every message queued since the previous call without blocking.
func (s *Session) Drain() []Message {
	return s.messages.Drain()
}

// Terminate clears the running flag, asks the child to stop, and kills it if
// it has not exited within the terminate timeout. It is safe to call more than
// once and on a session that never started.
func (s *Session) Terminate(ctx context.Context) error {
	s.terminateOnce.Do(func() {
		s.terminateErr = s.terminate(ctx)
	})
	return s.terminateErr
}

func (s *Session) terminate(ctx context.Context) error {
	// Start holds mu for the whole spawn, so a concurrent Start either
	// finishes first and is killed below or sees terminated and refuses.
	s.mu.Lock()
	s.terminated = true
	s.running.Store(false)
	cmd := s.cmd
	stdin := s.stdin
	done := s.done
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	defer func() { _ = stdin.Close() }()

	select {
	case <-done:
		return nil
	default:
	}

	log.Info(log.CatSession, "terminating child", "session", s.id, "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Not every platform can deliver SIGTERM; go straight to the kill.
		log.Debug(log.CatSession, "graceful signal unavailable", "session", s.id, "error", err)
		return s.kill(ctx, cmd, done)
	}

	timer := time.NewTimer(s.opts.TerminateTimeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info(log.CatSession, "child exited gracefully", "session", s.id)
		return nil
	case <-timer.C:
		log.Warn(log.CatSession, "terminate timed out, killing", "session", s.id, "timeout", s.opts.TerminateTimeout)
		return s.kill(ctx, cmd, done)
	case <-ctx.Done():
		return s.kill(ctx, cmd, done)
	}
}

func (s *Session) kill(ctx context.Context, cmd *exec.Cmd, done <-chan struct{}) error {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", s.opts.Name, err)
	}
	// The reaper closes done once the kill lands; don't outlive ctx waiting.
	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
