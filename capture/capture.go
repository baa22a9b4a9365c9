package capture

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/soypat/sdftrace/render"
	"github.com/soypat/sdftrace/shade"
)

// Bundle file names.
const (
	ManifestFile = "manifest.json"
	FramesFile   = "frames.bin.zst"
	StatsFile    = "stats.jsonl.sz"
)

// Version is the bundle format version written by [Writer].
const Version = 1

// index(8) + time(4) + elapsed ns(8) + payload length(4).
const frameHeaderSize = 24

// Manifest describes the layout of a capture bundle.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FramesPath string `json:"frames_path"`
	StatsPath  string `json:"stats_path"`
}

// Frame is a single rendered frame stored in a bundle.
type Frame struct {
	Index uint64
	// Time is the scene time the frame was rendered at.
	Time float32
	// Elapsed is the wall time taken to render the frame.
	Elapsed time.Duration
	Pixels  []shade.Color
}

// StatsRecord is a line of the bundle's stats stream.
type StatsRecord struct {
	Index     uint64  `json:"index"`
	Time      float32 `json:"time"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Hits      int     `json:"hits"`
	Misses    int     `json:"misses"`
	Exhausted int     `json:"exhausted"`
	Steps     int64   `json:"steps"`
}

// Stats returns the render stats of the record.
func (r StatsRecord) Stats() render.Stats {
	return render.Stats{Hits: r.Hits, Misses: r.Misses, Exhausted: r.Exhausted, Steps: r.Steps}
}

// Writer streams rendered frames into a bundle directory. Frames are stored
// zstd compressed and per-frame stats as snappy compressed JSON lines.
// A Writer is not safe for concurrent use.
type Writer struct {
	dir         string
	width       int
	height      int
	statsFile   *os.File
	statsStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	frames      uint64
	buf         []byte
}

// NewWriter creates the bundle directory dir, if needed, and opens the compressed
// streams for frames of size width×height.
func NewWriter(dir string, width, height int) (*Writer, Manifest, error) {
	if dir == "" {
		return nil, Manifest{}, errors.New("capture directory must be provided")
	} else if width <= 0 || height <= 0 {
		return nil, Manifest{}, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, Manifest{}, err
	}
	manifest := Manifest{
		Version:    Version,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		Width:      width,
		Height:     height,
		FramesPath: FramesFile,
		StatsPath:  StatsFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, Manifest{}, err
	}
	err = os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
	if err != nil {
		return nil, Manifest{}, err
	}

	statsFile, err := os.Create(filepath.Join(dir, StatsFile))
	if err != nil {
		return nil, Manifest{}, err
	}
	frameFile, err := os.Create(filepath.Join(dir, FramesFile))
	if err != nil {
		statsFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		statsFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}
	w := &Writer{
		dir:         dir,
		width:       width,
		height:      height,
		statsFile:   statsFile,
		statsStream: snappy.NewBufferedWriter(statsFile),
		frameFile:   frameFile,
		frameStream: frameStream,
		buf:         make([]byte, frameHeaderSize+4*width*height),
	}
	return w, manifest, nil
}

// Directory returns the bundle directory.
func (w *Writer) Directory() string { return w.dir }

// Frames returns the number of frames written so far.
func (w *Writer) Frames() uint64 { return w.frames }

// WriteFrame appends a frame rendered at scene time t along with its render stats.
// pixels must hold exactly width*height colors.
func (w *Writer) WriteFrame(t float32, elapsed time.Duration, pixels []shade.Color, stats render.Stats) error {
	npix := w.width * w.height
	if len(pixels) != npix {
		return fmt.Errorf("frame has %d pixels, want %d", len(pixels), npix)
	}
	b := w.buf[:frameHeaderSize+4*npix]
	binary.LittleEndian.PutUint64(b[0:8], w.frames)
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(t))
	binary.LittleEndian.PutUint64(b[12:20], uint64(elapsed))
	binary.LittleEndian.PutUint32(b[20:24], uint32(4*npix))
	for i, c := range pixels {
		binary.LittleEndian.PutUint32(b[frameHeaderSize+4*i:], uint32(c))
	}
	_, err := w.frameStream.Write(b)
	if err != nil {
		return fmt.Errorf("writing frame %d: %w", w.frames, err)
	}
	line, err := json.Marshal(StatsRecord{
		Index:     w.frames,
		Time:      t,
		ElapsedMs: float64(elapsed) / float64(time.Millisecond),
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Exhausted: stats.Exhausted,
		Steps:     stats.Steps,
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.statsStream.Write(line)
	if err != nil {
		return fmt.Errorf("writing stats %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Close flushes the compressed streams and closes the bundle files.
// It returns the first error encountered.
func (w *Writer) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(w.frameStream.Close())
	keep(w.frameFile.Close())
	keep(w.statsStream.Close())
	keep(w.statsFile.Close())
	return firstErr
}

// ReadBundle loads the manifest, frames and stats of the bundle at path, which
// may be the bundle directory or its manifest file.
func ReadBundle(path string) (Manifest, []Frame, []StatsRecord, error) {
	manifestPath := path
	info, err := os.Stat(path)
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	if info.IsDir() {
		manifestPath = filepath.Join(path, ManifestFile)
	}
	dir := filepath.Dir(manifestPath)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	var manifest Manifest
	err = json.Unmarshal(data, &manifest)
	if err != nil {
		return Manifest{}, nil, nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if manifest.Version != Version {
		return Manifest{}, nil, nil, fmt.Errorf("unsupported bundle version %d", manifest.Version)
	}
	frames, err := readFrames(filepath.Join(dir, manifest.FramesPath), manifest.Width*manifest.Height)
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	stats, err := readStats(filepath.Join(dir, manifest.StatsPath))
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	return manifest, frames, stats, nil
}

func readFrames(path string, npix int) ([]Frame, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	dec, err := zstd.NewReader(fp)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	r := bufio.NewReader(dec)
	var header [frameHeaderSize]byte
	var frames []Frame
	for {
		_, err = io.ReadFull(r, header[:])
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("frame %d header: %w", len(frames), err)
		}
		size := int(binary.LittleEndian.Uint32(header[20:24]))
		if size != 4*npix {
			return nil, fmt.Errorf("frame %d has %d payload bytes, want %d", len(frames), size, 4*npix)
		}
		payload := make([]byte, size)
		_, err = io.ReadFull(r, payload)
		if err != nil {
			return nil, fmt.Errorf("frame %d payload truncated: %w", len(frames), err)
		}
		pixels := make([]shade.Color, npix)
		for i := range pixels {
			pixels[i] = shade.Color(binary.LittleEndian.Uint32(payload[4*i:]))
		}
		frames = append(frames, Frame{
			Index:   binary.LittleEndian.Uint64(header[0:8]),
			Time:    math.Float32frombits(binary.LittleEndian.Uint32(header[8:12])),
			Elapsed: time.Duration(binary.LittleEndian.Uint64(header[12:20])),
			Pixels:  pixels,
		})
	}
	return frames, nil
}

func readStats(path string) ([]StatsRecord, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	scanner := bufio.NewScanner(snappy.NewReader(fp))
	var records []StatsRecord
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec StatsRecord
		err = json.Unmarshal(line, &rec)
		if err != nil {
			return nil, fmt.Errorf("stats line %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// CountDiff returns the number of pixels that differ between two frames.
// Pixels present in only one of the frames count as different.
func CountDiff(a, b []shade.Color) int {
	n := min(len(a), len(b))
	diff := max(len(a), len(b)) - n
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			diff++
		}
	}
	return diff
}
