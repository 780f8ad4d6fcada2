// Package capture reads frames from a local camera or a network stream
// through an ffmpeg MJPEG pipe.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/your-org/roomgate/internal/observability"
)

const (
	maxFrameBytes = 10 << 20
	restartDelay  = 2 * time.Second
)

var errFrameTooLarge = errors.New("jpeg frame too large")

// Camera keeps the most recently decoded frame of a source. Source is a
// V4L2 device path (/dev/video0), an rtsp:// or http(s):// URL, or a file.
type Camera struct {
	source string
	fps    int
	width  int

	mu     sync.Mutex
	latest image.Image
	fresh  bool
}

func NewCamera(source string, fps, width int) *Camera {
	return &Camera{source: source, fps: fps, width: width}
}

// Frame returns the latest frame if it has not been returned before.
func (c *Camera) Frame() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fresh {
		return nil, false
	}
	c.fresh = false
	return c.latest, true
}

// Snapshot returns the latest frame without consuming it.
func (c *Camera) Snapshot() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.latest != nil
}

func (c *Camera) store(img image.Image) {
	c.mu.Lock()
	c.latest = img
	c.fresh = true
	c.mu.Unlock()
	observability.FramesCaptured.Inc()
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run keeps ffmpeg running until ctx is cancelled, restarting it when the
// stream ends or fails.
func (c *Camera) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("camera stream ended, restarting", "source", c.source, "error", err, "delay", restartDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(restartDelay):
		}
	}
}

func (c *Camera) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(c.source, c.fps, c.width)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	slog.Info("camera started", "source", c.source, "fps", c.fps, "width", c.width)

	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			slog.Warn("ffmpeg", "output", sc.Text())
		}
	}()

	readErr := c.consume(ctx, stdout)
	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	return waitErr
}

// consume decodes a stream of concatenated JPEG images into the frame slot.
func (c *Camera) consume(ctx context.Context, r io.Reader) error {
	br := bufio.NewReaderSize(r, 512*1024)
	for ctx.Err() == nil {
		data, err := nextJPEG(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			slog.Warn("decode frame", "error", err)
			continue
		}
		c.store(img)
	}
	return ctx.Err()
}

func ffmpegArgs(source string, fps, width int) []string {
	args := []string{"-hide_banner", "-loglevel", "warning"}

	switch {
	case strings.HasPrefix(source, "/dev/video"):
		args = append(args, "-f", "v4l2")
	case strings.HasPrefix(source, "rtsp://"), strings.HasPrefix(source, "rtsps://"):
		args = append(args, "-rtsp_transport", "tcp", "-timeout", "5000000")
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}

	return append(args,
		"-i", source,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1", fps, width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)
}

// nextJPEG returns the bytes from the next SOI marker through the following
// EOI marker.
func nextJPEG(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		if next, err := r.Peek(1); err == nil && next[0] == 0xD8 {
			_, _ = r.ReadByte()
			break
		}
	}

	frame := []byte{0xFF, 0xD8}
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		frame = append(frame, b)
		if len(frame) >= 4 && b == 0xD9 && frame[len(frame)-2] == 0xFF {
			return frame, nil
		}
		if len(frame) > maxFrameBytes {
			return nil, errFrameTooLarge
		}
	}
}
