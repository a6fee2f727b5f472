package transcode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/scenecue/pkg/errorsx"
)

func TestFFmpegArgs(t *testing.T) {
	f := NewFFmpeg(Config{})
	got := strings.Join(f.Args("in.ogg", "out.pcm"), " ")
	want := "-hide_banner -loglevel error -y -i in.ogg -ac 1 -ar 16000 -f f32le out.pcm"
	if got != want {
		t.Fatalf("unexpected args:\n got %q\nwant %q", got, want)
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	f := NewFFmpeg(Config{Binary: "scenecue-no-such-ffmpeg", Timeout: time.Second})
	err := f.Transcode(context.Background(), "in.ogg", "out.pcm")
	if err == nil {
		t.Fatalf("expected error for missing binary")
	}
	if !errorsx.HasReason(err, errorsx.ReasonTranscode) {
		t.Fatalf("expected transcode reason, got %q", errorsx.Reason(err))
	}
}

func TestDecodeF32LE(t *testing.T) {
	in := []float32{0, 0.5, -1, 0.25}
	out, err := DecodeF32LE(EncodeF32LE(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: want %v got %v", i, in[i], out[i])
		}
	}
}

func TestDecodeF32LERejectsBadInput(t *testing.T) {
	if _, err := DecodeF32LE(nil); !errorsx.HasReason(err, errorsx.ReasonAudioDecode) {
		t.Fatalf("empty input must fail with audio_decode, got %v", err)
	}
	if _, err := DecodeF32LE([]byte{1, 2, 3}); !errorsx.HasReason(err, errorsx.ReasonAudioDecode) {
		t.Fatalf("truncated input must fail with audio_decode, got %v", err)
	}
}

func TestWorkspaceWriteAndRemove(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	clip, err := ws.Write([]byte("OggS"), "ogg")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(clip.In), ClipPrefix) || filepath.Ext(clip.In) != ".ogg" {
		t.Fatalf("unexpected input name %q", clip.In)
	}
	if filepath.Ext(clip.Out) != ".pcm" {
		t.Fatalf("unexpected output name %q", clip.Out)
	}
	if err := os.WriteFile(clip.Out, []byte{0, 0, 0, 0}, 0o600); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	ws.Remove(clip)
	ws.Remove(clip)

	entries, _ := os.ReadDir(ws.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestWorkspaceNamesAreUnique(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	a, _ := ws.Write([]byte("a"), ".ogg")
	b, _ := ws.Write([]byte("b"), ".ogg")
	if a.In == b.In {
		t.Fatalf("expected unique names, got %q twice", a.In)
	}
}

func TestPurgeStale(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, ClipPrefix+"old.ogg")
	fresh := filepath.Join(dir, ClipPrefix+"fresh.pcm")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(other, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := PurgeStale(dir, time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("stale clip still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh clip removed: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}
