package appserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Listener receives raw stdout chunks from the child. Chunks are delivered
// sequentially; the session splits them into frames.
type Listener func(chunk []byte)

// Runner abstracts how one app-server process is launched and reached. One
// runner drives exactly one process; the manager builds a fresh runner per
// spawn through a RunnerFactory.
type Runner interface {
	// Start launches the process. Stdout chunks flow into listener, stderr
	// into the writer. Start does not block on the process lifetime.
	Start(ctx context.Context, listener Listener, stderr io.Writer) error
	// Send writes one newline-terminated frame to the child's stdin.
	Send(data []byte) error
	// Interrupt asks the child to stop.
	Interrupt() error
	// Kill terminates the child.
	Kill() error
	// Done is closed once the child exited.
	Done() <-chan struct{}
	// Err reports the exit cause after Done is closed.
	Err() error
}

// RunnerFactory builds a runner for one spawn.
type RunnerFactory func() Runner

// LocalRunner runs the child on this host via os/exec with piped stdio.
type LocalRunner struct {
	command string
	args    []string
	env     map[string]string

	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
	err   error
}

// NewLocalRunner creates a runner for a local child process.
func NewLocalRunner(command string, args []string, env map[string]string) *LocalRunner {
	return &LocalRunner{command: command, args: args, env: env, done: make(chan struct{})}
}

// Start launches the process and begins pumping its stdio.
func (r *LocalRunner) Start(ctx context.Context, listener Listener, stderr io.Writer) error {
	cmd := exec.Command(r.command, r.args...)
	cmd.Env = os.Environ()
	for key, value := range r.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.command, err)
	}
	r.cmd = cmd
	r.stdin = stdin

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		buffer := make([]byte, 32*1024)
		for {
			n, err := stdout.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				listener(chunk)
			}
			if err != nil {
				return
			}
		}
	}()
	go func() {
		defer pumps.Done()
		_, _ = io.Copy(stderr, errPipe)
	}()
	go func() {
		pumps.Wait()
		r.err = cmd.Wait()
		close(r.done)
	}()
	return nil
}

// Send writes one frame to the child's stdin.
func (r *LocalRunner) Send(data []byte) error {
	select {
	case <-r.done:
		return errors.New("process has exited")
	default:
	}
	if r.stdin == nil {
		return errors.New("process is not started")
	}
	_, err := r.stdin.Write(data)
	return err
}

// Interrupt sends an interrupt signal to the child.
func (r *LocalRunner) Interrupt() error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	return r.cmd.Process.Signal(os.Interrupt)
}

// Kill terminates the child.
func (r *LocalRunner) Kill() error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	return r.cmd.Process.Kill()
}

// Done is closed once the child exited.
func (r *LocalRunner) Done() <-chan struct{} {
	return r.done
}

// Err reports the exit cause after Done is closed.
func (r *LocalRunner) Err() error {
	return r.err
}
