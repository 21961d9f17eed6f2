package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// eofWait bounds how long Close waits for a pending Read to drain the pipe.
const eofWait = 2 * time.Second

// Microphone hands out audio streams. Closing a stream releases the device.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// errNoRecorder is returned by a CommandMicrophone without a command.
var errNoRecorder = errors.New("no recorder command configured")

// CommandMicrophone records by running an external command and reading its
// stdout, e.g. "arecord -q -t wav -f S16_LE -r 16000 -c 1".
type CommandMicrophone struct {
	name string
	args []string
}

// NewCommandMicrophone parses command into program and arguments.
func NewCommandMicrophone(command string) *CommandMicrophone {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &CommandMicrophone{}
	}
	return &CommandMicrophone{name: fields[0], args: fields[1:]}
}

// Open starts the recorder process.
func (m *CommandMicrophone) Open(_ context.Context) (io.ReadCloser, error) {
	if m.name == "" {
		return nil, errNoRecorder
	}
	cmd := exec.Command(m.name, m.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach to %s: %w", m.name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", m.name, err)
	}
	return &commandStream{cmd: cmd, stdout: stdout, eof: make(chan struct{})}, nil
}

type commandStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	eof       chan struct{}
	eofOnce   sync.Once
	closeOnce sync.Once
}

func (s *commandStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil {
		s.eofOnce.Do(func() { close(s.eof) })
	}
	return n, err
}

// Close kills the process, lets a pending Read see EOF, then reaps it.
// Wait closes the pipe, so it must not run while a Read is in progress.
func (s *commandStream) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		select {
		case <-s.eof:
		case <-time.After(eofWait):
		}
		_ = s.cmd.Wait()
	})
	return nil
}
