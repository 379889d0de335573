package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// ReaderRecognizer treats each line of r as one final utterance. Blank lines are reported
// as ErrNoSpeech. The stream can only be started once.
type ReaderRecognizer struct {
	r          io.Reader
	utterances chan string
	errs       chan error

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	stopped bool
}

// NewReaderRecognizer wraps r, for example a FIFO fed by an external speech engine.
func NewReaderRecognizer(r io.Reader) *ReaderRecognizer {
	return &ReaderRecognizer{
		r:          r,
		utterances: make(chan string, 16),
		errs:       make(chan error, 4),
		stopCh:     make(chan struct{}),
	}
}

func (rr *ReaderRecognizer) Utterances() <-chan string { return rr.utterances }
func (rr *ReaderRecognizer) Errors() <-chan error { return rr.errs }

func (rr *ReaderRecognizer) Start(ctx context.Context) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.started || rr.stopped {
		return ErrStreamClosed
	}
	rr.started = true

	go func() {
		scanner := bufio.NewScanner(rr.r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				rr.sendErr(ErrNoSpeech)
				continue
			}
			select {
			case rr.utterances <- line:
			case <-rr.stopCh:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			rr.sendErr(fmt.Errorf("read utterances: %w", err))
			return
		}
		rr.sendErr(ErrStreamClosed)
	}()
	return nil
}

func (rr *ReaderRecognizer) Stop() error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if !rr.stopped {
		rr.stopped = true
		close(rr.stopCh)
	}
	return nil
}

func (rr *ReaderRecognizer) sendErr(err error) {
	select {
	case rr.errs <- err:
	case <-rr.stopCh:
	}
}

// ExecRecognizer runs a speech-to-text command and reads one utterance per stdout line.
// Exit status 0 is reported as ErrInterrupted so the caller may restart it; any other exit
// is fatal. Stderr lines mentioning "no speech" are reported as ErrNoSpeech.
type ExecRecognizer struct {
	command    string
	utterances chan string
	errs       chan error

	mu     sync.Mutex
	cancel context.CancelFunc
	runID  int
}

// NewExecRecognizer creates a recognizer for a shell command line.
func NewExecRecognizer(command string) *ExecRecognizer {
	return &ExecRecognizer{
		command:    command,
		utterances: make(chan string, 16),
		errs:       make(chan error, 4),
	}
}

func (e *ExecRecognizer) Utterances() <-chan string { return e.utterances }
func (e *ExecRecognizer) Errors() <-chan error { return e.errs }

func (e *ExecRecognizer) Start(ctx context.Context) error {
	if strings.TrimSpace(e.command) == "" {
		return errors.New("speech command is empty")
	}

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.runID++
	id := e.runID
	e.mu.Unlock()

	cmd := exec.CommandContext(runCtx, "sh", "-c", e.command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("speech command stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("speech command stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start speech command: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				select {
				case e.utterances <- line:
				case <-runCtx.Done():
					return
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if strings.Contains(strings.ToLower(scanner.Text()), "no speech") {
				e.report(runCtx, id, ErrNoSpeech)
			}
		}
	}()

	go func() {
		wg.Wait()
		waitErr := cmd.Wait()
		if waitErr == nil {
			e.report(runCtx, id, ErrInterrupted)
			return
		}
		e.report(runCtx, id, fmt.Errorf("speech command exited: %w", waitErr))
	}()
	return nil
}

func (e *ExecRecognizer) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.runID++
	return nil
}

// report drops errors from runs that were stopped or superseded by a restart.
func (e *ExecRecognizer) report(ctx context.Context, id int, err error) {
	e.mu.Lock()
	current := id == e.runID
	e.mu.Unlock()
	if !current || ctx.Err() != nil {
		return
	}
	select {
	case e.errs <- err:
	case <-ctx.Done():
	}
}
