package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/provider"
)

// ErrWorkerExited is returned by a Worker whose process is no longer running.
var ErrWorkerExited = errors.New("process: worker exited")

var _ provider.RequestResponse[[]byte, []byte] = (*Worker)(nil)

// WorkerConfig configures a long-lived line-oriented subprocess.
type WorkerConfig struct {
	// Name identifies the worker in logs and errors.
	Name string
	// Command is the process to spawn. Command.Stdin is ignored.
	Command Command
	// StartupTimeout bounds the wait for the first stdout line. Defaults to 1 minute.
	StartupTimeout time.Duration
	// MaxLineSize bounds a single stdout line. Defaults to 16MB.
	MaxLineSize int
}

// Worker runs a subprocess that speaks one line per message over stdin and
// stdout. The first stdout line is the ready line returned by Start; after
// that each request line written by Execute is answered by exactly one
// response line. Calls are serialized. Stderr is logged and its tail is
// quoted when the process dies.
type Worker struct {
	cfg WorkerConfig
	log *logger.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan []byte

	stderr   *tailBuffer
	done     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	waitErr  error
}

// NewWorker creates a worker. The process is not spawned until Start.
func NewWorker(cfg WorkerConfig, log *logger.Logger) *Worker {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = time.Minute
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = 16 << 20
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Command.Binary
	}
	return &Worker{
		cfg:    cfg,
		log:    log.WithComponent("worker." + cfg.Name),
		stderr: newTailBuffer(stderrTailSize),
		lines:  make(chan []byte, 1),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}
}

// Start spawns the process and waits for its ready line.
func (w *Worker) Start(ctx context.Context) ([]byte, error) {
	if w.cfg.Command.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}

	c := exec.Command(w.cfg.Command.Binary, w.cfg.Command.Args...) //nolint:gosec // dynamic args are the purpose of this package
	c.Dir = w.cfg.Command.Dir
	c.Env = mergeEnv(w.cfg.Command.Env)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdin pipe: %w", err)
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stderr pipe: %w", err)
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", w.cfg.Command.Binary, err)
	}
	w.cmd = c
	w.stdin = stdin
	w.log.Info("worker started", map[string]interface{}{"pid": c.Process.Pid})

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		w.readStdout(stdout)
	}()
	go func() {
		defer pipes.Done()
		w.readStderr(stderr)
	}()
	go func() {
		pipes.Wait()
		w.waitErr = c.Wait()
		close(w.done)
	}()

	timer := time.NewTimer(w.cfg.StartupTimeout)
	defer timer.Stop()

	select {
	case line := <-w.lines:
		return line, nil
	case <-w.done:
		return nil, w.exitError()
	case <-timer.C:
		w.kill()
		return nil, fmt.Errorf("process: %s not ready after %s", w.cfg.Name, w.cfg.StartupTimeout)
	case <-ctx.Done():
		w.kill()
		return nil, fmt.Errorf("process: %s startup: %w", w.cfg.Name, ctx.Err())
	}
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.cfg.Name }

// IsAvailable reports whether the process is running.
func (w *Worker) IsAvailable(_ context.Context) bool { return w.Alive() }

// Alive reports whether the process has been started and has not exited.
func (w *Worker) Alive() bool {
	if w.cmd == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Execute writes one request line and returns the next response line.
// If ctx ends before the response arrives the worker is killed, since the
// pending response would otherwise be read by the next caller. Execute
// returns once the process has exited, so Alive is false afterwards.
func (w *Worker) Execute(ctx context.Context, request []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.Alive() {
		if w.cmd == nil {
			return nil, fmt.Errorf("process: %s not started", w.cfg.Name)
		}
		return nil, w.exitError()
	}

	msg := make([]byte, 0, len(request)+1)
	msg = append(append(msg, request...), '\n')
	if _, err := w.stdin.Write(msg); err != nil {
		select {
		case <-w.done:
			return nil, w.exitError()
		case <-time.After(100 * time.Millisecond):
		}
		return nil, fmt.Errorf("process: write to %s: %w", w.cfg.Name, err)
	}

	select {
	case line := <-w.lines:
		return line, nil
	case <-w.done:
		return nil, w.exitError()
	case <-ctx.Done():
		w.log.Warn("request abandoned, killing worker", map[string]interface{}{
			logger.FieldError: ctx.Err().Error(),
		})
		w.kill()
		<-w.done
		return nil, fmt.Errorf("process: %s: %w", w.cfg.Name, ctx.Err())
	}
}

// Stop closes stdin and waits for the process to exit, escalating to
// SIGTERM and then SIGKILL after the grace period each.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cmd == nil {
		return nil
	}
	w.quitOnce.Do(func() { close(w.quit) })
	_ = w.stdin.Close()

	grace := w.cfg.Command.gracePeriod()
	for _, sig := range []syscall.Signal{0, syscall.SIGTERM, syscall.SIGKILL} {
		if sig != 0 {
			_ = signalGroup(w.cmd.Process, sig)
		}
		timer := time.NewTimer(grace)
		select {
		case <-w.done:
			timer.Stop()
			w.log.Info("worker stopped")
			return nil
		case <-ctx.Done():
			timer.Stop()
			_ = signalGroup(w.cmd.Process, syscall.SIGKILL)
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("process: %s did not exit after SIGKILL", w.cfg.Name)
}

// Kill sends SIGKILL to the process group and waits for it to exit.
func (w *Worker) Kill() {
	if w.cmd == nil {
		return
	}
	w.kill()
	<-w.done
}

func (w *Worker) kill() {
	w.quitOnce.Do(func() { close(w.quit) })
	if w.cmd != nil {
		_ = signalGroup(w.cmd.Process, syscall.SIGKILL)
	}
}

func (w *Worker) exitError() error {
	<-w.done
	msg := w.stderr.String()
	if msg == "" {
		return fmt.Errorf("%w: %s: %v", ErrWorkerExited, w.cfg.Name, w.waitErr)
	}
	return fmt.Errorf("%w: %s: %v: %s", ErrWorkerExited, w.cfg.Name, w.waitErr, msg)
}

func (w *Worker) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), w.cfg.MaxLineSize)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case w.lines <- line:
		case <-w.quit:
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		w.log.Error("worker stdout unreadable, killing worker", logger.ErrorFields("read_stdout", err))
		w.kill()
		_, _ = io.Copy(io.Discard, r)
	}
}

func (w *Worker) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		_, _ = w.stderr.Write([]byte(line + "\n"))
		w.log.Debug(line)
	}
	_, _ = io.Copy(io.Discard, r)
}
