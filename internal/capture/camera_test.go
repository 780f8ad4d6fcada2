package capture

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestNextJPEG(t *testing.T) {
	a, b := encode(t, 4, 4), encode(t, 8, 8)
	stream := append([]byte("garbage\xff\x00"), a...)
	stream = append(stream, b...)

	r := bufio.NewReader(bytes.NewReader(stream))
	got, err := nextJPEG(r)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = nextJPEG(r)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = nextJPEG(r)
	assert.Error(t, err)
}

func TestCamera_ConsumeKeepsLatest(t *testing.T) {
	var stream []byte
	stream = append(stream, encode(t, 4, 4)...)
	stream = append(stream, encode(t, 16, 8)...)

	c := NewCamera("test", 30, 16)
	_, ok := c.Frame()
	assert.False(t, ok)

	require.NoError(t, c.consume(context.Background(), bytes.NewReader(stream)))

	img, ok := c.Frame()
	require.True(t, ok)
	assert.Equal(t, 16, img.Bounds().Dx())

	// a frame is handed out once
	_, ok = c.Frame()
	assert.False(t, ok)

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, img, snap)
}

func TestCamera_SkipsUndecodableFrames(t *testing.T) {
	stream := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	c := NewCamera("test", 30, 16)
	require.NoError(t, c.consume(context.Background(), bytes.NewReader(stream)))
	_, ok := c.Frame()
	assert.False(t, ok)
}

func TestFFmpegArgs(t *testing.T) {
	tests := []struct {
		source string
		want   []string
	}{
		{"/dev/video0", []string{"-f", "v4l2"}},
		{"rtsp://cam/stream", []string{"-rtsp_transport", "tcp"}},
		{"http://cam/mjpeg", []string{"-reconnect", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			args := ffmpegArgs(tt.source, 15, 640)
			assert.Subset(t, args, tt.want)
			assert.Contains(t, args, "fps=15,scale=640:-1")
			assert.Equal(t, "pipe:1", args[len(args)-1])
		})
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(image.NewRGBA(image.Rect(0, 0, 8, 8)), 80)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data[:2])

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}
