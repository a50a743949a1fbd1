package vision

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrFrameRead means the camera produced no usable frame for one read.
var ErrFrameRead = errors.New("camera frame read failed")

// WebcamConfig selects and sizes the capture device.
type WebcamConfig struct {
	DeviceID int
	Width    int
	Height   int
}

// Webcam wraps a gocv video capture device as a frame source for the capture
// loop.
type Webcam struct {
	cam *gocv.VideoCapture
}

// OpenWebcam opens the capture device and applies the configured resolution.
func OpenWebcam(cfg WebcamConfig) (*Webcam, error) {
	cam, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", cfg.DeviceID, err)
	}
	if cfg.Width > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		cam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	return &Webcam{cam: cam}, nil
}

// Read grabs the next frame. The caller owns the returned mat. A failed or
// empty read returns ErrFrameRead; retry policy belongs to the caller.
func (w *Webcam) Read(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.Mat{}, err
	}
	frame := gocv.NewMat()
	if ok := w.cam.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, ErrFrameRead
	}
	return frame, nil
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	return w.cam.Close()
}
