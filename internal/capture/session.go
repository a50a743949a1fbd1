// Package capture runs the sequential capture-then-decide loop for one gate
// station: grab a frame, localize the plate, read it, correct and validate
// the text, classify the plate color, and accumulate consensus candidates
// until the frame budget is spent.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"parking-gate/internal/consensus"
	"parking-gate/internal/ocr"
	"parking-gate/internal/plate"
	"parking-gate/internal/vision"
)

// ErrCameraFailed means the frame source failed more times in a row than the
// retry budget allows.
var ErrCameraFailed = errors.New("camera read retries exhausted")

// FrameSource produces frames for the capture loop.
type FrameSource interface {
	Read(ctx context.Context) (gocv.Mat, error)
}

// Detector localizes plate regions in a frame. Zero results is valid.
type Detector interface {
	Detect(frame gocv.Mat) []image.Rectangle
}

// EVClassifier decides the EV flag for a plate crop.
type EVClassifier interface {
	IsEV(crop gocv.Mat) bool
}

// Config bounds one capture session.
type Config struct {
	// FrameBudget is how many frames with a detection to collect.
	FrameBudget int
	// MaxReadRetries bounds consecutive camera read failures before the
	// session fails outright.
	MaxReadRetries int
	// Budget optionally caps the session wall clock; zero means frames only.
	Budget time.Duration
	// FrameDelay is the pause between processed frames.
	FrameDelay time.Duration
}

// DefaultConfig mirrors the gate tuning: five frames, a quarter second
// apart, with up to thirty consecutive failed reads tolerated.
func DefaultConfig() Config {
	return Config{
		FrameBudget:    5,
		MaxReadRetries: 30,
		FrameDelay:     250 * time.Millisecond,
	}
}

// Session drives one vehicle's capture at a gate.
type Session struct {
	source    FrameSource
	detector  Detector
	reader    ocr.Reader
	ev        EVClassifier
	corrector *plate.Corrector
	cfg       Config
	log       zerolog.Logger
}

// NewSession wires the collaborators for a gate station.
func NewSession(source FrameSource, detector Detector, reader ocr.Reader, ev EVClassifier, corrector *plate.Corrector, cfg Config, log zerolog.Logger) *Session {
	return &Session{
		source:    source,
		detector:  detector,
		reader:    reader,
		ev:        ev,
		corrector: corrector,
		cfg:       cfg,
		log:       log,
	}
}

// Run collects consensus candidates until the frame budget is met, the wall
// clock budget expires, or ctx is canceled. It returns the candidates
// gathered so far; an empty slice is the no-detection outcome, not an error.
// The ledger is never touched from here.
func (s *Session) Run(ctx context.Context) ([]consensus.Candidate, error) {
	if s.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Budget)
		defer cancel()
	}

	var candidates []consensus.Candidate
	captured := 0
	readFailures := 0

	for captured < s.cfg.FrameBudget {
		if err := ctx.Err(); err != nil {
			// Budget expired: finish with what we have.
			break
		}

		frame, err := s.source.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			readFailures++
			if readFailures > s.cfg.MaxReadRetries {
				return candidates, fmt.Errorf("%w: %d consecutive failures", ErrCameraFailed, readFailures)
			}
			continue
		}
		readFailures = 0

		candidate, found := s.processFrame(frame, captured)
		frame.Close()
		if !found {
			continue
		}
		captured++
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}

		if s.cfg.FrameDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.FrameDelay):
			}
		}
	}

	return candidates, nil
}

// processFrame returns the candidate extracted from the frame, if any. The
// second return tells whether a plate region was detected at all; frames
// where OCR yields nothing still consume the frame budget, matching the
// per-frame pacing of the stations.
func (s *Session) processFrame(frame gocv.Mat, frameIndex int) (*consensus.Candidate, bool) {
	regions := s.detector.Detect(frame)
	if len(regions) == 0 {
		return nil, false
	}

	// The most prominent detection wins; multi-plate frames are not a gate
	// scenario.
	crop := vision.CropRegion(frame, regions[0])
	defer crop.Close()
	if crop.Empty() {
		return nil, true
	}

	processed := vision.PreprocessPlate(crop)
	defer processed.Close()

	texts, err := s.reader.ReadText(processed, ocr.PlateAllowlist)
	if err != nil {
		s.log.Warn().Err(err).Int("frame", frameIndex).Msg("OCR failed for frame")
		return nil, true
	}
	raw := longest(texts)
	if raw == "" {
		return nil, true
	}

	corrected := s.corrector.Correct(raw)
	candidate := consensus.Candidate{
		Text:        corrected,
		ValidFormat: plate.IsValidFormat(corrected),
		IsEV:        s.ev.IsEV(crop),
	}

	s.log.Debug().
		Int("frame", frameIndex).
		Str("raw", raw).
		Str("corrected", corrected).
		Bool("valid", candidate.ValidFormat).
		Bool("ev", candidate.IsEV).
		Msg("frame candidate")

	return &candidate, true
}

// longest picks the longest string the OCR produced; plates out-measure the
// stray fragments the engine sometimes emits.
func longest(texts []string) string {
	best := ""
	for _, t := range texts {
		if len(t) > len(best) {
			best = t
		}
	}
	return best
}
