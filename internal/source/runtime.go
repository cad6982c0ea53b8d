package source

import (
	"fmt"
	"sync"

	"camsampler/internal/logger"

	"gocv.io/x/gocv"
)

// Runtime performs the process-wide OpenCV setup once. It is created at
// startup and handed to the capture factory.
type Runtime struct {
	once    sync.Once
	err     error
	version string
	logger  *logger.Logger
}

// NewRuntime returns an uninitialised Runtime.
func NewRuntime(logger *logger.Logger) *Runtime {
	return &Runtime{logger: logger}
}

// Init runs the setup on the first call and returns its result on every call.
func (r *Runtime) Init() error {
	r.once.Do(func() {
		r.version = gocv.OpenCVVersion()
		if r.version == "" {
			r.err = fmt.Errorf("opencv runtime unavailable")
			return
		}
		r.logger.Info("🎥 OpenCV %s (gocv %s) initialised", r.version, gocv.Version())
	})
	return r.err
}

// Version returns the OpenCV version found by Init.
func (r *Runtime) Version() string {
	return r.version
}
