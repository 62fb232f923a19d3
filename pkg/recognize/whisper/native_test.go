package whisper_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/recognize"
	"github.com/vhfnav/readback/pkg/recognize/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("")
	if err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("/nonexistent/path/to/model.bin")
	if err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestNewNative_WithOptions_DoesNotError(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath,
		whisper.WithNativeLanguage("en"),
		whisper.WithNativeFormat(audio.Format{SampleRate: 16000, Channels: 1}),
		whisper.WithNativeSilenceThresholdMs(300),
		whisper.WithNativeMaxBufferDurationMs(5000),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()
	if p == nil {
		t.Fatal("expected non-nil NativeProvider")
	}
}

func TestNativeStartStream_ReturnsLiveSession(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	sess, err := p.StartStream(context.Background(), recognize.StreamConfig{Format: testFormat})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()

	if sess.Fragments() == nil {
		t.Error("Fragments() returned nil channel")
	}
}

func TestNativeStartStream_CancelledContext_ReturnsError(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.StartStream(ctx, recognize.StreamConfig{Format: testFormat})
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestNativeSilenceAloneDoesNotEmitFragment(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath,
		whisper.WithNativeSilenceThresholdMs(50),
	)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	sess, err := p.StartStream(context.Background(), recognize.StreamConfig{Format: testFormat})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	_ = sess.SendAudio(makeSilencePCM(16000))
	time.Sleep(150 * time.Millisecond)
	sess.Close()

	select {
	case frag, ok := <-sess.Fragments():
		if ok {
			t.Errorf("unexpected fragment for silence-only audio: %q", frag.Text)
		}
	default:
	}
}

func TestNativeSpeechFollowedBySilenceEmitsFragment(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath,
		whisper.WithNativeLanguage("en"),
		whisper.WithNativeSilenceThresholdMs(100),
	)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	sess, err := p.StartStream(context.Background(), recognize.StreamConfig{Format: testFormat})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()

	if err := sess.SendAudio(makeSpeechPCM(1600)); err != nil {
		t.Fatalf("SendAudio (speech): %v", err)
	}
	if err := sess.SendAudio(makeSilencePCM(1600)); err != nil {
		t.Fatalf("SendAudio (silence): %v", err)
	}

	// The transcribed content depends on the model, so just verify that
	// something was emitted.
	select {
	case frag := <-sess.Fragments():
		t.Logf("transcribed text: %q", frag.Text)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for fragment")
	}
}

func TestNativeClose_Idempotent(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	sess, err := p.StartStream(context.Background(), recognize.StreamConfig{Format: testFormat})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
}

func TestNativeSendAudio_AfterClose_ReturnsError(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	sess, err := p.StartStream(context.Background(), recognize.StreamConfig{Format: testFormat})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	sess.Close()

	if err := sess.SendAudio(makeSpeechPCM(100)); err == nil {
		t.Fatal("SendAudio after Close() should return an error")
	}
}
