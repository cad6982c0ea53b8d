package source

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

const (
	// DetectionThreshold is the minimum confidence for a person detection.
	DetectionThreshold = 0.6
	// personClassID is the COCO label of a person.
	personClassID = 1
)

// PersonDetector counts persons with an SSD network trained on COCO.
// A gocv.Net is not safe for concurrent use, so each capture loop owns one.
type PersonDetector struct {
	net gocv.Net
}

// NewPersonDetector loads the network from model and the optional config file.
func NewPersonDetector(model, modelConfig string) (*PersonDetector, error) {
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("model file not found: %s", model)
	}
	if modelConfig != "" {
		if _, err := os.Stat(modelConfig); err != nil {
			return nil, fmt.Errorf("model config file not found: %s", modelConfig)
		}
	}

	net := gocv.ReadNet(model, modelConfig)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", model)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}

	return &PersonDetector{net: net}, nil
}

// Count runs the network on mat and returns the number of confident person detections.
func (d *PersonDetector) Count(mat gocv.Mat) (int, error) {
	if mat.Empty() {
		return 0, fmt.Errorf("empty frame")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// Rows of [batch_id, class_id, confidence, x1, y1, x2, y2]
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	persons := 0
	for i := 0; i < rows.Rows(); i++ {
		if int(rows.GetFloatAt(i, 1)) == personClassID && rows.GetFloatAt(i, 2) > DetectionThreshold {
			persons++
		}
	}
	return persons, nil
}

// Close releases the network.
func (d *PersonDetector) Close() error {
	return d.net.Close()
}
