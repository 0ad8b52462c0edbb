package camera

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/your-org/facepos/internal/config"
)

// maxFrameSize caps a single MJPEG frame read from the pipe.
const maxFrameSize = 10 * 1024 * 1024

// FFmpegDevice pulls MJPEG frames from a local webcam (v4l2 device path)
// or a network stream URL through an ffmpeg pipe. Each Acquire spawns a
// fresh ffmpeg process; the handle keeps the latest frame so capture is
// never blocked on camera pacing.
type FFmpegDevice struct {
	source string
	fps    int
	width  int
}

func NewFFmpegDevice(cfg config.CameraConfig) *FFmpegDevice {
	return &FFmpegDevice{source: cfg.Device, fps: cfg.FPS, width: cfg.FrameWidth}
}

func (d *FFmpegDevice) Acquire(ctx context.Context) (Handle, error) {
	if d.source == "" {
		return nil, fmt.Errorf("%w: no camera device configured", ErrUnavailable)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	switch {
	case strings.HasPrefix(d.source, "/dev/"):
		args = append(args, "-f", "v4l2")
	case strings.HasPrefix(d.source, "rtsp://"):
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args,
		"-i", d.source,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-1", d.fps, d.width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrUnavailable, err)
	}

	h := &ffmpegHandle{
		cancel:     cancel,
		cmd:        cmd,
		frameReady: make(chan struct{}),
	}
	go h.readFrames(stdout)

	return h, nil
}

type ffmpegHandle struct {
	cancel context.CancelFunc
	cmd    *exec.Cmd

	mu         sync.Mutex
	latest     []byte
	frameReady chan struct{} // closed once the first frame arrives
	readyOnce  sync.Once
	release    sync.Once
}

// readFrames scans the MJPEG byte stream for SOI/EOI markers and stores
// each complete frame as the latest.
func (h *ffmpegHandle) readFrames(r io.Reader) {
	reader := bufio.NewReaderSize(r, 512*1024)
	for {
		frame, err := nextJPEG(reader)
		if err != nil {
			if err != io.EOF {
				slog.Warn("camera frame read", "error", err)
			}
			return
		}
		h.mu.Lock()
		h.latest = frame
		h.mu.Unlock()
		h.readyOnce.Do(func() { close(h.frameReady) })
	}
}

func (h *ffmpegHandle) CaptureFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-h.frameReady:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	h.mu.Lock()
	frame := h.latest
	h.mu.Unlock()
	if frame == nil {
		return nil, fmt.Errorf("no frame available")
	}
	return frame, nil
}

func (h *ffmpegHandle) Release() {
	h.release.Do(func() {
		h.cancel()
		if h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
		}
		_ = h.cmd.Wait()
	})
}

// nextJPEG reads one JPEG image delimited by the FF D8 / FF D9 markers.
func nextJPEG(r *bufio.Reader) ([]byte, error) {
	// Seek the start-of-image marker.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0xD8 {
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
		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			frame = append(frame, next)
			if next == 0xD9 {
				return frame, nil
			}
		}
		if len(frame) > maxFrameSize {
			return nil, fmt.Errorf("jpeg frame exceeds %d bytes", maxFrameSize)
		}
	}
}
