package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"parking-gate/internal/capture"
	"parking-gate/internal/config"
	"parking-gate/internal/db"
	"parking-gate/internal/domain/parking"
	"parking-gate/internal/ocr"
	"parking-gate/internal/plate"
	"parking-gate/internal/repository"
	"parking-gate/internal/service"
	"parking-gate/internal/vision"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.LogLevel).With().
		Str("station", cfg.Gate.StationID).
		Str("mode", cfg.Gate.Mode).
		Logger()

	gormDB, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	ledger := repository.NewLedgerRepository(gormDB)
	allocator := service.NewAllocatorService(ledger, policyFor(cfg.Gate), log)

	direction := parking.DirectionEntry
	if cfg.Gate.Mode == config.ModeExit {
		direction = parking.DirectionExit
	}
	gate := service.NewGateService(allocator, ledger, nil, cfg.Gate.StationID, direction, log)

	webcam, err := vision.OpenWebcam(vision.WebcamConfig{
		DeviceID: cfg.Camera.DeviceID,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open camera")
	}
	defer webcam.Close()

	detector, err := vision.NewCascadeDetector(vision.DefaultDetectorConfig(cfg.Camera.CascadePath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load plate cascade")
	}
	defer detector.Close()

	reader, err := ocr.NewTesseractReader()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize OCR")
	}
	defer reader.Close()

	evConfig := vision.DefaultEVConfig()
	if cfg.Engine.GreenThreshold > 0 {
		evConfig.Threshold = cfg.Engine.GreenThreshold
	}
	classifier := vision.NewEVClassifier(evConfig)
	corrector := plate.NewDefaultCorrector()

	captureConfig := capture.Config{
		FrameBudget:    cfg.Engine.FrameBudget,
		MaxReadRetries: cfg.Engine.MaxReadRetries,
		Budget:         time.Duration(cfg.Engine.CaptureBudgetMS) * time.Millisecond,
		FrameDelay:     time.Duration(cfg.Engine.FrameDelayMS) * time.Millisecond,
	}
	session := capture.NewSession(webcam, detector, reader, classifier, corrector, captureConfig, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("gate station started")
	runStation(ctx, session, gate, log)
	log.Info().Msg("gate station stopped")
}

// runStation loops capture sessions until shutdown. A camera failure ends
// the process; transient empty sessions just start the next one.
func runStation(ctx context.Context, session *capture.Session, gate *service.GateService, log zerolog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		candidates, err := session.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, capture.ErrCameraFailed) {
			log.Error().Err(err).Msg("camera failed, shutting down")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("capture session failed")
			continue
		}

		decision, err := gate.HandleCapture(ctx, candidates)
		if err != nil {
			log.Error().Err(err).Msg("gate decision failed")
			continue
		}
		if decision.NoDetection {
			continue
		}
		log.Info().
			Str("plate", decision.PlateText).
			Str("outcome", string(decision.Outcome)).
			Str("slot", decision.SlotNumber).
			Msg("gate decision")
	}
}

func policyFor(gate config.GateConfig) parking.Policy {
	var policy parking.Policy
	switch gate.Mode {
	case config.ModeEntryWomen:
		policy = parking.WomenGatePolicy()
	default:
		policy = parking.DefaultPolicy()
	}
	policy.EVFallbackToRegular = gate.EVFallback
	if gate.ExitMode != "" {
		policy.ExitMode = parking.ExitMode(gate.ExitMode)
	}
	return policy
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Logger()
}
