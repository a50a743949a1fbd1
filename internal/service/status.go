package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-gate/internal/domain/parking"
	"parking-gate/internal/repository"
)

// SlotStatus is the dashboard view of one slot.
type SlotStatus struct {
	SlotNumber    string     `json:"slot_number"`
	IsEVSlot      bool       `json:"is_ev_slot"`
	Status        string     `json:"status"`
	VehicleNumber string     `json:"vehicle_number,omitempty"`
	IsEV          bool       `json:"is_ev,omitempty"`
	EntryTime     *time.Time `json:"entry_time,omitempty"`
}

// LedgerQueries is the read/admin surface the dashboard needs.
type LedgerQueries interface {
	ListActiveSessions(ctx context.Context) ([]parking.ParkingSession, error)
	ListSessions(ctx context.Context, filter repository.SessionFilter) ([]parking.ParkingSession, error)
	ListGateEvents(ctx context.Context, limit int) ([]parking.GateEvent, error)
	DeleteSessionByID(ctx context.Context, id int64) error
}

// StatusService serves the dashboard occupancy grid, session history, and
// the gate-event audit feed.
type StatusService struct {
	ledger LedgerQueries
	log    zerolog.Logger
}

// NewStatusService builds the dashboard query service.
func NewStatusService(ledger LedgerQueries, log zerolog.Logger) *StatusService {
	return &StatusService{ledger: ledger, log: log}
}

// SlotMap returns the full slot grid, occupied slots annotated with their
// active session. Derived entirely from active sessions; slot identity
// itself is static.
func (s *StatusService) SlotMap(ctx context.Context) (map[string]SlotStatus, error) {
	active, err := s.ledger.ListActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list active sessions: %v", ErrLedger, err)
	}

	bySlot := make(map[string]parking.ParkingSession, len(active))
	for _, session := range active {
		bySlot[session.SlotNumber] = session
	}

	grid := make(map[string]SlotStatus, parking.EVSlotCount+parking.RegularSlotCount)
	for _, slot := range parking.EVSlots() {
		grid[slot] = slotStatus(slot, true, bySlot)
	}
	for _, slot := range parking.RegularSlots() {
		grid[slot] = slotStatus(slot, false, bySlot)
	}
	return grid, nil
}

func slotStatus(slot string, evSlot bool, bySlot map[string]parking.ParkingSession) SlotStatus {
	status := SlotStatus{
		SlotNumber: slot,
		IsEVSlot:   evSlot,
		Status:     "available",
	}
	if session, ok := bySlot[slot]; ok {
		entry := session.EntryTime
		status.Status = "occupied"
		status.VehicleNumber = session.VehicleNumber
		status.IsEV = session.IsEV
		status.EntryTime = &entry
	}
	return status
}

// Sessions returns session history, newest first.
func (s *StatusService) Sessions(ctx context.Context, filter repository.SessionFilter) ([]parking.ParkingSession, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	sessions, err := s.ledger.ListSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrLedger, err)
	}
	return sessions, nil
}

// SearchVehicle returns every session for one plate, newest first.
func (s *StatusService) SearchVehicle(ctx context.Context, vehicleNumber string) ([]parking.ParkingSession, error) {
	if vehicleNumber == "" {
		return nil, fmt.Errorf("%w: vehicle number is required", ErrInvalidInput)
	}
	return s.Sessions(ctx, repository.SessionFilter{VehicleNumber: &vehicleNumber, Limit: 100})
}

// Events returns the most recent gate events.
func (s *StatusService) Events(ctx context.Context, limit int) ([]parking.GateEvent, error) {
	events, err := s.ledger.ListGateEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list gate events: %v", ErrLedger, err)
	}
	return events, nil
}

// DeleteSession removes one session row by id (admin action).
func (s *StatusService) DeleteSession(ctx context.Context, id int64) error {
	err := s.ledger.DeleteSessionByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: delete session: %v", ErrLedger, err)
	}
	s.log.Info().Int64("session_id", id).Msg("session deleted by admin")
	return nil
}
