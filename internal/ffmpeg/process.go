// Package ffmpeg runs ffmpeg child processes that decode video into JPEG
// frames and encode JPEG frames back into video.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/fallwatch/internal/errors"
	"github.com/tphakala/fallwatch/internal/logger"
)

// DefaultFrameRate is used when the source frame rate is unknown.
const DefaultFrameRate = 25.0

// stderrLimit caps the captured ffmpeg stderr.
const stderrLimit = 8 << 10

// waitTimeout bounds how long Close waits for ffmpeg after killing it.
const waitTimeout = 5 * time.Second

// stderrTail keeps the last stderrLimit bytes written by ffmpeg.
type stderrTail struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *stderrTail) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, _ := w.buf.Write(p)
	if over := w.buf.Len() - stderrLimit; over > 0 {
		w.buf.Next(over)
	}
	return n, nil
}

// LastLine returns the last non-empty line ffmpeg printed.
func (w *stderrTail) LastLine() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	lines := strings.Split(strings.TrimSpace(w.buf.String()), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// process is a started ffmpeg command.
type process struct {
	cmd    *exec.Cmd
	stderr *stderrTail

	waitOnce sync.Once
	done     chan struct{}
	err      error
}

func startProcess(ctx context.Context, binary string, args []string, stdin bool) (*process, io.WriteCloser, io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // G204: binary from validated settings, args built internally
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	p := &process{cmd: cmd, stderr: &stderrTail{}, done: make(chan struct{})}
	cmd.Stderr = p.stderr

	var (
		in  io.WriteCloser
		out io.ReadCloser
		err error
	)
	if stdin {
		in, err = cmd.StdinPipe()
	} else {
		out, err = cmd.StdoutPipe()
	}
	if err != nil {
		return nil, nil, nil, errors.New(fmt.Errorf("failed to create ffmpeg pipe: %w", err)).
			Component("ffmpeg").
			Category(errors.CategoryCommandExecution).
			Context("operation", "start_process").
			Build()
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, errors.New(fmt.Errorf("failed to start ffmpeg: %w", err)).
			Component("ffmpeg").
			Category(errors.CategoryCommandExecution).
			Context("operation", "start_process").
			Context("ffmpeg_path", binary).
			Build()
	}

	GetLogger().Debug("ffmpeg process started",
		logger.Int("pid", cmd.Process.Pid),
		logger.Int("args_count", len(args)))

	return p, in, out, nil
}

// wait reaps the process. Concurrent and repeated calls share one result.
func (p *process) wait() error {
	p.waitOnce.Do(func() {
		p.err = p.cmd.Wait()
		close(p.done)
	})
	return p.err
}

// exitError describes a failed ffmpeg run using its last stderr line.
func (p *process) exitError(operation string, err error) error {
	msg := p.stderr.LastLine()
	if msg == "" {
		msg = err.Error()
	}
	return errors.New(fmt.Errorf("ffmpeg %s failed: %s", operation, msg)).
		Component("ffmpeg").
		Category(errors.CategoryCommandExecution).
		Context("operation", operation).
		Build()
}

// Decoder reads JPEG frames from an ffmpeg process writing image2pipe mjpeg
// to stdout.
type Decoder struct {
	proc    *process
	stdout  io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// StartDecoder starts ffmpeg with args. The process is killed when ctx is
// canceled or Close is called.
func StartDecoder(ctx context.Context, binary string, args []string) (*Decoder, error) {
	ctx, cancel := context.WithCancel(ctx)
	proc, _, stdout, err := startProcess(ctx, binary, args, false)
	if err != nil {
		cancel()
		return nil, err
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256<<10), MaxFrameSize)
	scanner.Split(ScanJPEG)

	return &Decoder{proc: proc, stdout: stdout, scanner: scanner, cancel: cancel}, nil
}

// Next returns the next JPEG frame. The returned slice is only valid until
// the next call. It returns io.EOF once ffmpeg exits cleanly.
func (d *Decoder) Next() ([]byte, error) {
	if d.scanner.Scan() {
		return d.scanner.Bytes(), nil
	}

	scanErr := d.scanner.Err()
	waitErr := d.proc.wait()
	switch {
	case scanErr != nil:
		return nil, d.proc.exitError("decode", scanErr)
	case waitErr != nil:
		return nil, d.proc.exitError("decode", waitErr)
	default:
		return nil, io.EOF
	}
}

// Close kills ffmpeg if it is still running and reaps it. It is safe to call
// more than once.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		_ = d.stdout.Close()
		go func() { _ = d.proc.wait() }()
		select {
		case <-d.proc.done:
		case <-time.After(waitTimeout):
			d.closeErr = errors.Newf("ffmpeg did not exit within %s", waitTimeout).
				Component("ffmpeg").
				Category(errors.CategoryTimeout).
				Context("operation", "close_decoder").
				Build()
		}
	})
	return d.closeErr
}

// Encoder writes JPEG frames into an ffmpeg process reading image2pipe
// mjpeg from stdin.
type Encoder struct {
	proc   *process
	stdin  io.WriteCloser
	cancel context.CancelFunc
	frames int
}

// StartEncoder starts ffmpeg with args.
func StartEncoder(ctx context.Context, binary string, args []string) (*Encoder, error) {
	ctx, cancel := context.WithCancel(ctx)
	proc, stdin, _, err := startProcess(ctx, binary, args, true)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Encoder{proc: proc, stdin: stdin, cancel: cancel}, nil
}

// WriteFrame sends one encoded JPEG image to ffmpeg.
func (e *Encoder) WriteFrame(frame []byte) error {
	if _, err := e.stdin.Write(frame); err != nil {
		return e.proc.exitError("encode", err)
	}
	e.frames++
	return nil
}

// Close finishes the output file and waits for ffmpeg to exit.
func (e *Encoder) Close() error {
	defer e.cancel()
	_ = e.stdin.Close()
	if err := e.proc.wait(); err != nil {
		return e.proc.exitError("encode", err)
	}
	GetLogger().Debug("ffmpeg encoder finished", logger.Int("frames", e.frames))
	return nil
}
