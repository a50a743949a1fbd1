// Package vision holds the camera-side image operations for a gate station:
// plate region detection, OCR preprocessing, and the green-plate EV
// classifier. All heavy lifting is done through OpenCV mats.
package vision

import (
	"gocv.io/x/gocv"
)

// EVConfig bounds the green hue band and the mask-coverage threshold for the
// EV decision.
type EVConfig struct {
	HueLow    float64
	SatLow    float64
	ValLow    float64
	HueHigh   float64
	SatHigh   float64
	ValHigh   float64
	Threshold float64
}

// DefaultEVConfig returns the green band tuned for Indian EV plates.
func DefaultEVConfig() EVConfig {
	return EVConfig{
		HueLow: 30, SatLow: 40, ValLow: 40,
		HueHigh: 90, SatHigh: 255, ValHigh: 255,
		Threshold: 0.3,
	}
}

// EVClassifier decides whether a plate crop belongs to an electric vehicle
// from pixel statistics alone, independent of the plate text.
type EVClassifier struct {
	lower     gocv.Scalar
	upper     gocv.Scalar
	threshold float64
}

// NewEVClassifier builds a classifier for the configured green band.
func NewEVClassifier(cfg EVConfig) *EVClassifier {
	return &EVClassifier{
		lower:     gocv.NewScalar(cfg.HueLow, cfg.SatLow, cfg.ValLow, 0),
		upper:     gocv.NewScalar(cfg.HueHigh, cfg.SatHigh, cfg.ValHigh, 0),
		threshold: cfg.Threshold,
	}
}

// IsEV reports whether the green-band pixel fraction of the BGR plate crop
// exceeds the classifier threshold. Empty crops are never EVs. Crops of any
// size are accepted.
func (c *EVClassifier) IsEV(crop gocv.Mat) bool {
	if crop.Empty() {
		return false
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(crop, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, c.lower, c.upper, &mask)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return false
	}
	return float64(gocv.CountNonZero(mask))/float64(total) > c.threshold
}
