package device

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/aiai-go/episode"
)

func TestPipeActuatorCommands(t *testing.T) {
	var buf bytes.Buffer
	a := NewPipeActuator(&buf, "D_UP")

	require.NoError(t, a.Reset())
	require.NoError(t, a.Apply(episode.Command{X: 1, Y: -1}))
	require.NoError(t, a.Apply(episode.Command{X: 0.5, Y: 3}))
	require.NoError(t, a.Apply(episode.Neutral))

	assert.Equal(t, "PRESS D_UP\nRELEASE D_UP\n"+
		"SET MAIN 1.0000 0.0000\n"+
		"SET MAIN 0.7500 1.0000\n"+
		"SET MAIN 0.5000 0.5000\n", buf.String())
}

func TestPipeActuatorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe1")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	a, err := OpenPipeActuator(path, "")
	require.NoError(t, err)
	require.NoError(t, a.Apply(episode.Command{}))
	require.Error(t, a.Reset())
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SET MAIN 0.5000 0.5000\n", string(data))
}

func TestHTTPDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		img, err := png.Decode(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
		assert.Equal(t, color.Gray{Y: 77}, color.GrayModel.Convert(img.At(1, 1)))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]float64{
				{"xmin": 1, "ymin": 2, "xmax": 3, "ymax": 4, "confidence": 0.9},
			},
		})
	}))
	defer srv.Close()

	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 1, color.Gray{Y: 77})

	d := NewHTTPDetector(srv.URL, time.Second)
	dets, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, episode.Detection{XMin: 1, YMin: 2, XMax: 3, YMax: 4, Confidence: 0.9}, dets[0])
	assert.Equal(t, 4.0, dets[0].Area())
}

func TestHTTPDetectorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, time.Second)
	_, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)))
	require.ErrorContains(t, err, "model not loaded")
}

func writeFrame(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	img.SetRGBA(2, 1, color.RGBA{1, 2, 3, 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDirSourceLoopsAndCrops(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, filepath.Join(dir, "0001.png"), 10, 8, color.RGBA{10, 10, 10, 255})
	writeFrame(t, filepath.Join(dir, "0002.png"), 10, 8, color.RGBA{20, 20, 20, 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src, err := NewDirSource(dir, image.Rect(2, 1, 6, 5))
	require.NoError(t, err)
	ctx := context.Background()

	var shades []uint8
	for i := 0; i < 3; i++ {
		img, err := src.Capture(ctx)
		require.NoError(t, err)
		require.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
		r, _, _, _ := img.At(1, 1).RGBA()
		shades = append(shades, uint8(r>>8))
	}
	assert.Equal(t, []uint8{10, 20, 10}, shades)

	img, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, img.(*image.RGBA).RGBAAt(0, 0))
}

func TestDirSourcePreCroppedFrames(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, filepath.Join(dir, "a.png"), 4, 4, color.RGBA{50, 50, 50, 255})

	src, err := NewDirSource(dir, image.Rect(310, 30, 314, 34))
	require.NoError(t, err)
	img, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestDirSourceEmpty(t *testing.T) {
	_, err := NewDirSource(t.TempDir(), image.Rect(0, 0, 4, 4))
	require.Error(t, err)
}

func TestCommandSource(t *testing.T) {
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("cat not available")
	}
	path := filepath.Join(t.TempDir(), "shot.png")
	writeFrame(t, path, 10, 8, color.RGBA{30, 30, 30, 255})

	src, err := NewCommandSource("/bin/cat "+path, image.Rect(0, 0, 5, 5))
	require.NoError(t, err)
	img, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 5), img.Bounds())

	_, err = NewCommandSource("  ", image.Rect(0, 0, 1, 1))
	require.Error(t, err)
}
