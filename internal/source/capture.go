package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"camsampler/internal/config"
	"camsampler/internal/logger"

	"gocv.io/x/gocv"
)

// maxReadFailures bounds consecutive failed reads before the stream is
// considered ended.
const maxReadFailures = 10

// CaptureSource reads a camera through OpenCV, counts persons in every frame
// and hands the JPEG-encoded frame to the handler.
type CaptureSource struct {
	camera  config.CameraConfig
	quality int
	logger  *logger.Logger
}

// CaptureFactory builds CaptureSources after making sure the OpenCV runtime
// is initialised.
type CaptureFactory struct {
	runtime *Runtime
	quality int
	logger  *logger.Logger
}

// NewCaptureFactory returns a Factory producing CaptureSources that encode
// frames at the given JPEG quality.
func NewCaptureFactory(runtime *Runtime, quality int, logger *logger.Logger) *CaptureFactory {
	return &CaptureFactory{runtime: runtime, quality: quality, logger: logger}
}

// New validates the camera's model files and returns its source.
func (f *CaptureFactory) New(cfg config.CameraConfig) (FrameSource, error) {
	if err := f.runtime.Init(); err != nil {
		return nil, err
	}

	// Fail at start time rather than on the delivery goroutine.
	detector, err := NewPersonDetector(cfg.Model, cfg.ModelConfig)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", cfg.ID, err)
	}
	detector.Close()

	return &CaptureSource{camera: cfg, quality: f.quality, logger: f.logger}, nil
}

// Run opens the device and delivers frames until ctx is done or reading fails.
// A blocked read is only interrupted by the next frame, so cancellation takes
// effect within one frame interval.
func (s *CaptureSource) Run(ctx context.Context, handle FrameHandler) error {
	detector, err := NewPersonDetector(s.camera.Model, s.camera.ModelConfig)
	if err != nil {
		return err
	}
	defer detector.Close()

	capture, err := gocv.OpenVideoCapture(device(s.camera.Device))
	if err != nil {
		return fmt.Errorf("failed to open device %s: %w", s.camera.Device, err)
	}
	defer capture.Close()

	if !capture.IsOpened() {
		return fmt.Errorf("video capture is not opened for device %s", s.camera.Device)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(s.camera.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(s.camera.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(s.camera.FPS))
	s.logger.Info("📷 Camera %s opened %s at %.0fx%.0f@%.0f", s.camera.ID, s.camera.Device,
		capture.Get(gocv.VideoCaptureFrameWidth), capture.Get(gocv.VideoCaptureFrameHeight), capture.Get(gocv.VideoCaptureFPS))

	img := gocv.NewMat()
	defer img.Close()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if ok := capture.Read(&img); !ok || img.Empty() {
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("%w: %d consecutive failed reads from %s", ErrEndOfStream, failures, s.camera.Device)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		failures = 0
		at := time.Now()

		persons, err := detector.Count(img)
		if err != nil {
			s.logger.Debug("Camera %s: detection failed: %v", s.camera.ID, err)
			persons = 0
		}

		encoded, err := encodeJPEG(img, s.quality)
		if err != nil {
			s.logger.Warning("Camera %s: %v", s.camera.ID, err)
			continue
		}

		handle(Frame{Image: encoded, Persons: persons, At: at})
	}
}

// encodeJPEG copies the encoded bytes out of the native buffer.
func encodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())
	return encoded, nil
}

// device turns a numeric locator into a device index, leaving paths and URLs as is.
func device(locator string) interface{} {
	if id, err := strconv.Atoi(locator); err == nil {
		return id
	}
	return locator
}
