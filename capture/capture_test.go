package capture_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/capture"
	"github.com/soypat/sdftrace/render"
	"github.com/soypat/sdftrace/shade"
)

func TestBundleRoundTrip(t *testing.T) {
	const w, h = 32, 20
	var bld sdftrace.Builder
	scene := bld.NewDemoScene(float32(w) / h)
	if err := bld.Err(); err != nil {
		t.Fatal(err)
	}
	r, err := render.NewRenderer(render.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "bundle")
	writer, manifest, err := capture.NewWriter(dir, w, h)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Width != w || manifest.Height != h || manifest.Version != capture.Version {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	times := []float32{0, 0.25, 3.5}
	var want [][]shade.Color
	var wantStats []render.Stats
	for i, tm := range times {
		frame := make([]shade.Color, w*h)
		stats, err := r.Render(context.Background(), frame, w, h, scene, tm)
		if err != nil {
			t.Fatal(err)
		}
		err = writer.WriteFrame(tm, time.Duration(i+1)*time.Millisecond, frame, stats)
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, frame)
		wantStats = append(wantStats, stats)
	}
	if err := writer.WriteFrame(0, 0, make([]shade.Color, 3), render.Stats{}); err == nil {
		t.Error("expected error for wrong frame size")
	}
	if writer.Frames() != uint64(len(times)) {
		t.Errorf("expected %d frames written, got %d", len(times), writer.Frames())
	}
	err = writer.Close()
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{dir, filepath.Join(dir, capture.ManifestFile)} {
		gotManifest, frames, stats, err := capture.ReadBundle(path)
		if err != nil {
			t.Fatal(err)
		}
		if gotManifest != manifest {
			t.Errorf("manifest mismatch: %+v != %+v", gotManifest, manifest)
		}
		if len(frames) != len(times) || len(stats) != len(times) {
			t.Fatalf("expected %d frames and stats, got %d and %d", len(times), len(frames), len(stats))
		}
		for i, frame := range frames {
			if frame.Index != uint64(i) || frame.Time != times[i] {
				t.Errorf("frame %d: bad header index=%d time=%v", i, frame.Index, frame.Time)
			}
			if frame.Elapsed != time.Duration(i+1)*time.Millisecond {
				t.Errorf("frame %d: bad elapsed %v", i, frame.Elapsed)
			}
			if n := capture.CountDiff(frame.Pixels, want[i]); n != 0 {
				t.Errorf("frame %d: %d pixels differ", i, n)
			}
			if stats[i].Stats() != wantStats[i] || stats[i].Index != uint64(i) {
				t.Errorf("frame %d: stats mismatch %+v != %+v", i, stats[i], wantStats[i])
			}
		}
	}
}

func TestReadBundleErrors(t *testing.T) {
	if _, _, _, err := capture.ReadBundle(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing bundle")
	}
	dir := t.TempDir()
	writer, manifest, err := capture.NewWriter(dir, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	_, frames, _, err := capture.ReadBundle(dir)
	if err != nil {
		t.Fatal(err)
	} else if len(frames) != 0 {
		t.Error("expected no frames in empty bundle")
	}
	manifest.Version = 99
	data, _ := json.Marshal(manifest)
	if err := os.WriteFile(filepath.Join(dir, capture.ManifestFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := capture.ReadBundle(dir); err == nil {
		t.Error("expected error for unsupported version")
	}
	if _, _, err := capture.NewWriter(dir, 0, 1); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestCountDiff(t *testing.T) {
	a := []shade.Color{1, 2, 3, 4}
	if n := capture.CountDiff(a, a); n != 0 {
		t.Error("identical frames differ", n)
	}
	if n := capture.CountDiff(a, []shade.Color{1, 0, 3}); n != 2 {
		t.Error("expected 2 differing pixels, got", n)
	}
}
