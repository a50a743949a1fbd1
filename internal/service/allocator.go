package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-gate/internal/domain/parking"
	"parking-gate/internal/metrics"
	"parking-gate/internal/repository"
)

var (
	// ErrLedger wraps any ledger failure (connection, timeout, constraint
	// machinery). It aborts the operation and is surfaced for retry, never
	// converted into a business outcome.
	ErrLedger = errors.New("ledger unavailable")
	// ErrInvalidInput flags malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// Ledger is the contract the allocator needs from the session store. The
// reserve step is a single atomic conditional write; there is no separate
// read-then-insert pair to race on.
type Ledger interface {
	FindActiveByVehicle(ctx context.Context, vehicleNumber string) (*parking.ParkingSession, error)
	FindActiveBySlot(ctx context.Context, slotNumber string) (*parking.ParkingSession, error)
	ReserveIfFree(ctx context.Context, vehicleNumber, slotNumber string, isEV bool, entryTime time.Time) (*parking.ParkingSession, error)
	CloseSession(ctx context.Context, vehicleNumber string, exitTime time.Time) (*parking.ParkingSession, error)
	DeleteActiveSession(ctx context.Context, vehicleNumber string) (*parking.ParkingSession, error)
}

// AllocatorService is the occupancy state machine: it assigns slots on entry
// and releases them on exit, preserving the one-active-session-per-vehicle
// and one-active-session-per-slot invariants.
type AllocatorService struct {
	ledger Ledger
	policy parking.Policy
	log    zerolog.Logger
	now    func() time.Time
}

// NewAllocatorService builds an allocator with the given scan policy.
func NewAllocatorService(ledger Ledger, policy parking.Policy, log zerolog.Logger) *AllocatorService {
	return &AllocatorService{
		ledger: ledger,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// Entry assigns the first free slot in policy order. It is idempotent: a
// vehicle that is already parked gets its existing slot back and no new
// session is created.
func (s *AllocatorService) Entry(ctx context.Context, vehicleNumber string, isEV bool) (parking.EntryResult, error) {
	if vehicleNumber == "" {
		return parking.EntryResult{}, fmt.Errorf("%w: vehicle number is required", ErrInvalidInput)
	}

	existing, err := s.ledger.FindActiveByVehicle(ctx, vehicleNumber)
	if err != nil {
		return parking.EntryResult{}, fmt.Errorf("%w: find active session: %v", ErrLedger, err)
	}
	if existing != nil {
		s.log.Info().
			Str("vehicle", vehicleNumber).
			Str("slot", existing.SlotNumber).
			Msg("vehicle already parked")
		return parking.EntryResult{
			Status:     parking.EntryAlreadyParked,
			SlotNumber: existing.SlotNumber,
			Session:    existing,
		}, nil
	}

	entryTime := s.now()
	for _, slot := range s.policy.ScanOrder(isEV) {
		occupant, err := s.ledger.FindActiveBySlot(ctx, slot)
		if err != nil {
			return parking.EntryResult{}, fmt.Errorf("%w: scan slot %s: %v", ErrLedger, slot, err)
		}
		if occupant != nil {
			continue
		}

		session, err := s.ledger.ReserveIfFree(ctx, vehicleNumber, slot, isEV, entryTime)
		if err == nil {
			s.log.Info().
				Str("vehicle", vehicleNumber).
				Str("slot", slot).
				Bool("ev", isEV).
				Msg("slot assigned")
			return parking.EntryResult{
				Status:     parking.EntryAssigned,
				SlotNumber: slot,
				Session:    session,
			}, nil
		}
		if errors.Is(err, repository.ErrConflict) {
			metrics.ReservationConflict()
			// Lost the race for this slot, or the vehicle gained a session
			// through another station. Re-check the vehicle, then move on.
			existing, ferr := s.ledger.FindActiveByVehicle(ctx, vehicleNumber)
			if ferr != nil {
				return parking.EntryResult{}, fmt.Errorf("%w: re-check after conflict: %v", ErrLedger, ferr)
			}
			if existing != nil {
				return parking.EntryResult{
					Status:     parking.EntryAlreadyParked,
					SlotNumber: existing.SlotNumber,
					Session:    existing,
				}, nil
			}
			s.log.Debug().Str("slot", slot).Msg("reservation conflict, trying next slot")
			continue
		}
		return parking.EntryResult{}, fmt.Errorf("%w: reserve slot %s: %v", ErrLedger, slot, err)
	}

	s.log.Info().Str("vehicle", vehicleNumber).Bool("ev", isEV).Msg("no slot available")
	return parking.EntryResult{Status: parking.EntryNoSlot}, nil
}

// Exit releases the vehicle's slot. Depending on policy the session is
// soft-closed (exit_time stamped) or hard-deleted. A vehicle with no active
// session gets NotParked with no ledger mutation; a second Exit call is a
// harmless NotParked.
func (s *AllocatorService) Exit(ctx context.Context, vehicleNumber string) (parking.ExitResult, error) {
	if vehicleNumber == "" {
		return parking.ExitResult{}, fmt.Errorf("%w: vehicle number is required", ErrInvalidInput)
	}

	var (
		session *parking.ParkingSession
		err     error
	)
	if s.policy.ExitMode == parking.ExitHardDelete {
		session, err = s.ledger.DeleteActiveSession(ctx, vehicleNumber)
	} else {
		session, err = s.ledger.CloseSession(ctx, vehicleNumber, s.now())
	}
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info().Str("vehicle", vehicleNumber).Msg("exit for unparked vehicle")
		return parking.ExitResult{Status: parking.ExitNotParked}, nil
	}
	if err != nil {
		return parking.ExitResult{}, fmt.Errorf("%w: close session: %v", ErrLedger, err)
	}

	s.log.Info().
		Str("vehicle", vehicleNumber).
		Str("slot", session.SlotNumber).
		Msg("slot released")
	return parking.ExitResult{
		Status:     parking.ExitReleased,
		SlotNumber: session.SlotNumber,
	}, nil
}
