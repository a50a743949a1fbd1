package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DetectorConfig tunes the Haar cascade plate detector.
type DetectorConfig struct {
	CascadePath  string
	ScaleFactor  float64
	MinNeighbors int
	MinWidth     int
	MinHeight    int
}

// DefaultDetectorConfig returns the cascade parameters used at the gates.
func DefaultDetectorConfig(cascadePath string) DetectorConfig {
	return DetectorConfig{
		CascadePath:  cascadePath,
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinWidth:     100,
		MinHeight:    50,
	}
}

// CascadeDetector localizes plate regions in a frame with a Haar cascade.
// Zero detections is a valid result.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	cfg        DetectorConfig
}

// NewCascadeDetector loads the cascade file and returns a ready detector.
func NewCascadeDetector(cfg DetectorConfig) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade %q", cfg.CascadePath)
	}
	return &CascadeDetector{classifier: classifier, cfg: cfg}, nil
}

// Detect returns the plate bounding boxes found in the BGR frame.
func (d *CascadeDetector) Detect(frame gocv.Mat) []image.Rectangle {
	if frame.Empty() {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	return d.classifier.DetectMultiScaleWithParams(
		gray,
		d.cfg.ScaleFactor,
		d.cfg.MinNeighbors,
		0,
		image.Pt(d.cfg.MinWidth, d.cfg.MinHeight),
		image.Pt(0, 0),
	)
}

// Close releases the cascade resources.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
