package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-gate/internal/consensus"
	"parking-gate/internal/domain/parking"
	"parking-gate/internal/metrics"
	"parking-gate/internal/plate"
)

// Allocator is what the gate needs from the slot state machine.
type Allocator interface {
	Entry(ctx context.Context, vehicleNumber string, isEV bool) (parking.EntryResult, error)
	Exit(ctx context.Context, vehicleNumber string) (parking.ExitResult, error)
}

// EventRecorder persists gate-event audit rows.
type EventRecorder interface {
	CreateGateEvent(ctx context.Context, event *parking.GateEvent) error
}

// Notifier pushes gate decisions to dashboard listeners.
type Notifier interface {
	NotifyGateEvent(event parking.GateNotification)
}

// GateDecision is what one finished capture session produced at a gate.
type GateDecision struct {
	Outcome    parking.GateOutcome `json:"outcome"`
	PlateText  string              `json:"plate_text,omitempty"`
	IsEV       bool                `json:"is_ev"`
	SlotNumber string              `json:"slot_number,omitempty"`
	// NoDetection is true when the capture collected no candidates; the
	// other fields are zero and the ledger was never touched.
	NoDetection bool `json:"no_detection"`
}

// GateService turns the candidates of a finished capture session into a
// consensus decision and drives the allocator with it.
type GateService struct {
	allocator Allocator
	events    EventRecorder
	notifier  Notifier
	stationID string
	direction parking.Direction
	log       zerolog.Logger
	now       func() time.Time
}

// NewGateService wires a gate station. notifier may be nil when no dashboard
// feed is attached.
func NewGateService(allocator Allocator, events EventRecorder, notifier Notifier, stationID string, direction parking.Direction, log zerolog.Logger) *GateService {
	return &GateService{
		allocator: allocator,
		events:    events,
		notifier:  notifier,
		stationID: stationID,
		direction: direction,
		log:       log,
		now:       time.Now,
	}
}

// HandleCapture finalizes one capture session. An empty candidate list is
// the explicit no-detection outcome: it is reported and never reaches the
// ledger. Everything else becomes an Entry or Exit, is recorded as a gate
// event, and is pushed to dashboard listeners.
func (g *GateService) HandleCapture(ctx context.Context, candidates []consensus.Candidate) (GateDecision, error) {
	result, ok := consensus.Resolve(candidates)
	if !ok {
		metrics.NoDetection()
		g.log.Info().Str("station", g.stationID).Msg("no plate detected this session")
		return GateDecision{NoDetection: true}, nil
	}
	if !result.UsedValidMajority {
		metrics.FallbackVote()
	}

	g.log.Info().
		Str("station", g.stationID).
		Str("plate", result.PlateText).
		Bool("ev", result.IsEV).
		Bool("valid_majority", result.UsedValidMajority).
		Msg("consensus reached")

	decision := GateDecision{
		PlateText: result.PlateText,
		IsEV:      result.IsEV,
	}

	switch g.direction {
	case parking.DirectionEntry:
		// An entry needs a well-formed plate even after the fallback vote;
		// the exit flow stays permissive so a misread plate can still leave.
		if !plate.IsValidFormat(result.PlateText) {
			decision.Outcome = parking.OutcomeFormatRejected
			g.log.Warn().
				Str("plate", result.PlateText).
				Msg("malformed plate, skipping entry")
			break
		}
		entry, err := g.allocator.Entry(ctx, result.PlateText, result.IsEV)
		if err != nil {
			return GateDecision{}, err
		}
		decision.SlotNumber = entry.SlotNumber
		decision.Outcome = entryOutcome(entry.Status)
	case parking.DirectionExit:
		exit, err := g.allocator.Exit(ctx, result.PlateText)
		if err != nil {
			return GateDecision{}, err
		}
		decision.SlotNumber = exit.SlotNumber
		decision.Outcome = exitOutcome(exit.Status)
	default:
		return GateDecision{}, fmt.Errorf("%w: unknown gate direction %q", ErrInvalidInput, g.direction)
	}

	metrics.GateDecision(string(g.direction), string(decision.Outcome))
	g.record(ctx, result, candidates, decision)
	return decision, nil
}

// record persists the audit row and notifies listeners. Audit failures are
// logged, not propagated: the slot decision already happened.
func (g *GateService) record(ctx context.Context, result consensus.Result, candidates []consensus.Candidate, decision GateDecision) {
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}

	event := parking.GateEvent{
		EventID:           uuid.NewString(),
		StationID:         g.stationID,
		Direction:         g.direction,
		PlateText:         result.PlateText,
		IsEV:              result.IsEV,
		UsedValidMajority: result.UsedValidMajority,
		Candidates:        texts,
		Outcome:           decision.Outcome,
		SlotNumber:        decision.SlotNumber,
		EventTime:         g.now(),
	}

	if err := g.events.CreateGateEvent(ctx, &event); err != nil {
		g.log.Error().Err(err).Str("plate", result.PlateText).Msg("failed to record gate event")
	}

	if g.notifier != nil {
		g.notifier.NotifyGateEvent(parking.GateNotification{
			EventID:    event.EventID,
			StationID:  event.StationID,
			Direction:  event.Direction,
			PlateText:  event.PlateText,
			IsEV:       event.IsEV,
			Outcome:    event.Outcome,
			SlotNumber: event.SlotNumber,
			EventTime:  event.EventTime,
		})
	}
}

func entryOutcome(status parking.EntryStatus) parking.GateOutcome {
	switch status {
	case parking.EntryAssigned:
		return parking.OutcomeAssigned
	case parking.EntryAlreadyParked:
		return parking.OutcomeAlreadyParked
	default:
		return parking.OutcomeNoSlot
	}
}

func exitOutcome(status parking.ExitStatus) parking.GateOutcome {
	if status == parking.ExitReleased {
		return parking.OutcomeReleased
	}
	return parking.OutcomeNotParked
}
