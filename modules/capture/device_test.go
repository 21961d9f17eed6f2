package capture

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestCommandMicrophone_StopWhileReadBlocked(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	// sleep writes nothing, so the read goroutine is parked in Read when Stop runs.
	recorder := NewRecorder(NewCommandMicrophone("sleep 30"), RecorderConfig{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
		TickInterval:  time.Second,
	}, &mockLogger{})

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	begin := time.Now()
	rec, err := recorder.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(begin); elapsed > eofWait {
		t.Errorf("Stop() took %v, want under %v", elapsed, eofWait)
	}
	if len(rec.Data) != 44 || !bytes.HasPrefix(rec.Data, []byte("RIFF")) {
		t.Errorf("Stop() data = %d bytes, want an empty WAV (44 bytes)", len(rec.Data))
	}
	if recorder.Active() {
		t.Errorf("Active() = true after Stop()")
	}
}

func TestCommandStream_CloseIsIdempotent(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	stream, err := NewCommandMicrophone("sleep 30").Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 64)
		for {
			if _, err := stream.Read(buf); err != nil {
				return
			}
		}
	}()

	if err := stream.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case <-readDone:
	case <-time.After(time.Second):
		t.Errorf("Read() still blocked after Close()")
	}
}
