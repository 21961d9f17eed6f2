package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

var (
	// ErrRecordingActive is returned when starting while a session is open.
	ErrRecordingActive = errors.New("capture: recording already in progress")
	// ErrNotRecording is returned when stopping without a session.
	ErrNotRecording = errors.New("capture: not recording")
	// ErrMicrophone wraps microphone failures.
	ErrMicrophone = errors.New("capture: microphone unavailable")
)

// ContentTypeWAV is the content type of a finished recording.
const ContentTypeWAV = "audio/wav"

// RecorderConfig describes the raw PCM format a microphone produces. Streams
// that already start with a RIFF header are kept as they are.
type RecorderConfig struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	TickInterval  time.Duration
}

// DefaultRecorderConfig returns 16 kHz mono 16-bit PCM with a one second tick.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
		TickInterval:  time.Second,
	}
}

// Recording is a finished capture.
type Recording struct {
	Data        []byte
	ContentType string
	Seconds     int
	Duration    time.Duration
}

// Recorder holds at most one capture session.
type Recorder struct {
	mic    Microphone
	config RecorderConfig
	logger types.Logger

	mu     sync.Mutex
	active *session
}

// NewRecorder creates an idle recorder.
func NewRecorder(mic Microphone, config RecorderConfig, logger types.Logger) *Recorder {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	return &Recorder{mic: mic, config: config, logger: logger}
}

type session struct {
	stream  io.ReadCloser
	started time.Time
	elapsed atomic.Int64

	bufMu sync.Mutex
	buf   bytes.Buffer

	stopChan chan struct{}
	doneChan chan struct{}
	readDone chan struct{}
	stopOnce sync.Once
}

// Start opens the microphone and begins buffering audio.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return ErrRecordingActive
	}

	stream, err := r.mic.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophone, err)
	}

	s := &session{
		stream:   stream,
		started:  time.Now(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go s.read(r.logger)
	go s.tick(r.config.TickInterval)
	r.active = s

	r.logger.Info("Recording started")
	return nil
}

// Stop ends the session, releases the microphone and returns the audio.
func (r *Recorder) Stop(_ context.Context) (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.active
	if s == nil {
		return Recording{}, ErrNotRecording
	}
	r.active = nil
	s.release()

	s.bufMu.Lock()
	raw := append([]byte(nil), s.buf.Bytes()...)
	s.bufMu.Unlock()

	rec := Recording{
		Data:        r.wav(raw),
		ContentType: ContentTypeWAV,
		Seconds:     int(s.elapsed.Load()),
		Duration:    time.Since(s.started),
	}
	r.logger.Info("Recording stopped", "seconds", rec.Seconds, "bytes", len(rec.Data))
	return rec, nil
}

// Abort ends the session without producing a recording.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.active; s != nil {
		r.active = nil
		s.release()
		r.logger.Info("Recording aborted")
	}
}

// Active reports whether a session is open.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Elapsed returns the whole seconds counted by the open session.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return 0
	}
	return int(r.active.elapsed.Load())
}

func (s *session) read(logger types.Logger) {
	defer close(s.readDone)
	chunk := make([]byte, 4096)
	for {
		n, err := s.stream.Read(chunk)
		if n > 0 {
			s.bufMu.Lock()
			s.buf.Write(chunk[:n])
			s.bufMu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				logger.Debug("Microphone stream ended", "error", err)
			}
			return
		}
	}
}

func (s *session) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(s.doneChan)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.elapsed.Add(1)
		}
	}
}

// release closes the stream exactly once and waits for both goroutines.
func (s *session) release() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		_ = s.stream.Close()
	})
	<-s.doneChan
	<-s.readDone
}

// wav wraps raw PCM in a RIFF header.
func (r *Recorder) wav(raw []byte) []byte {
	if bytes.HasPrefix(raw, []byte("RIFF")) {
		return raw
	}

	c := r.config
	blockAlign := c.Channels * c.BitsPerSample / 8
	var out bytes.Buffer
	out.Grow(44 + len(raw))
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(36+len(raw)))
	out.WriteString("WAVEfmt ")
	_ = binary.Write(&out, binary.LittleEndian, uint32(16))
	_ = binary.Write(&out, binary.LittleEndian, uint16(1))
	_ = binary.Write(&out, binary.LittleEndian, uint16(c.Channels))
	_ = binary.Write(&out, binary.LittleEndian, uint32(c.SampleRate))
	_ = binary.Write(&out, binary.LittleEndian, uint32(c.SampleRate*blockAlign))
	_ = binary.Write(&out, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&out, binary.LittleEndian, uint16(c.BitsPerSample))
	out.WriteString("data")
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(raw)))
	out.Write(raw)
	return out.Bytes()
}
