// Package capture provides the webcam frame source using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings. Frames are requested square at the classifier's
// input size.
const (
	DefaultSize = 224
	DefaultFPS  = 5
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrCameraUnavailable is returned by Open when no capture device can be used,
	// either because none exists or because access was denied.
	ErrCameraUnavailable = errors.New("camera unavailable")
)

// Camera is a live frame source. Open must succeed before ReadFrame is called;
// a successful Open is the readiness signal for sampling.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the latest frame. The caller closes the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	// Size is the requested square frame edge in pixels.
	Size() int
	IsOpen() bool
}

// Config configures a device camera.
type Config struct {
	DeviceID int
	Size     int
	FPS      int
}

// cameraImpl reads frames from a capture device using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewCamera creates a Camera for the configured device. Zero size or fps
// select the defaults.
func NewCamera(config Config) Camera {
	if config.Size <= 0 {
		config.Size = DefaultSize
	}
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	return &cameraImpl{config: config}
}

// Open opens the device and requests a square frame at the configured size.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrCameraUnavailable, c.config.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d could not be opened", ErrCameraUnavailable, c.config.DeviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Size))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Size))
	capture.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	c.capture = capture
	c.running = true

	return nil
}

// Close releases the device.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the device.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

func (c *cameraImpl) Size() int {
	return c.config.Size
}

// IsOpen returns true if the device is open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
