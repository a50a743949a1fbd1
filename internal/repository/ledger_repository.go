package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parking-gate/internal/domain/parking"
)

var (
	// ErrConflict means an atomic reservation lost a race: the slot (or the
	// vehicle) gained an active session between scan and insert. Callers
	// should retry with the next candidate slot or re-query; it is never a
	// business outcome.
	ErrConflict = errors.New("reservation conflict")
	// ErrNotFound means the targeted session does not exist or is no longer
	// active.
	ErrNotFound = errors.New("session not found")
)

// LedgerRepository is the durable store of parking sessions and gate events.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository wraps a gorm handle opened with TranslateError so
// unique violations surface as gorm.ErrDuplicatedKey.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

type sessionRow struct {
	ID            int64      `gorm:"primaryKey"`
	VehicleNumber string     `gorm:"not null"`
	IsEV          bool       `gorm:"column:is_ev;not null"`
	SlotNumber    string     `gorm:"not null"`
	EntryTime     time.Time  `gorm:"not null"`
	ExitTime      *time.Time
	CreatedAt     time.Time
}

func (sessionRow) TableName() string { return "parking_sessions" }

func (r sessionRow) toDomain() *parking.ParkingSession {
	return &parking.ParkingSession{
		ID:            r.ID,
		VehicleNumber: r.VehicleNumber,
		IsEV:          r.IsEV,
		SlotNumber:    r.SlotNumber,
		EntryTime:     r.EntryTime,
		ExitTime:      r.ExitTime,
	}
}

type gateEventRow struct {
	ID                int64          `gorm:"primaryKey"`
	EventID           string         `gorm:"not null;uniqueIndex"`
	StationID         string         `gorm:"not null"`
	Direction         string         `gorm:"not null"`
	PlateText         string         `gorm:"not null"`
	IsEV              bool           `gorm:"column:is_ev;not null"`
	UsedValidMajority bool           `gorm:"not null"`
	Candidates        datatypes.JSON `gorm:"type:jsonb"`
	Outcome           string         `gorm:"not null"`
	SlotNumber        *string
	EventTime         time.Time      `gorm:"not null"`
	CreatedAt         time.Time
}

func (gateEventRow) TableName() string { return "gate_events" }

// FindActiveByVehicle returns the vehicle's active session, or nil when the
// vehicle is not parked.
func (r *LedgerRepository) FindActiveByVehicle(ctx context.Context, vehicleNumber string) (*parking.ParkingSession, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).
		Where("vehicle_number = ? AND exit_time IS NULL", vehicleNumber).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// FindActiveBySlot returns the slot's active session, or nil when the slot
// is free.
func (r *LedgerRepository) FindActiveBySlot(ctx context.Context, slotNumber string) (*parking.ParkingSession, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).
		Where("slot_number = ? AND exit_time IS NULL", slotNumber).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ReserveIfFree creates the active session for the slot as one conditional
// write. The partial unique indexes on active slot_number and active
// vehicle_number make the insert the only arbiter: losing either race
// returns ErrConflict, and no session is created.
func (r *LedgerRepository) ReserveIfFree(ctx context.Context, vehicleNumber, slotNumber string, isEV bool, entryTime time.Time) (*parking.ParkingSession, error) {
	row := sessionRow{
		VehicleNumber: vehicleNumber,
		IsEV:          isEV,
		SlotNumber:    slotNumber,
		EntryTime:     entryTime,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// CloseSession stamps exit_time on the vehicle's active session and returns
// the closed session. ErrNotFound when the vehicle has no active session.
func (r *LedgerRepository) CloseSession(ctx context.Context, vehicleNumber string, exitTime time.Time) (*parking.ParkingSession, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vehicle_number = ? AND exit_time IS NULL", vehicleNumber).First(&row).Error; err != nil {
			return err
		}
		res := tx.Model(&sessionRow{}).
			Where("id = ? AND exit_time IS NULL", row.ID).
			Update("exit_time", exitTime)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	row.ExitTime = &exitTime
	return row.toDomain(), nil
}

// DeleteActiveSession removes the vehicle's active session entirely (the
// hard-delete exit variant) and returns the removed session. ErrNotFound
// when the vehicle has no active session.
func (r *LedgerRepository) DeleteActiveSession(ctx context.Context, vehicleNumber string) (*parking.ParkingSession, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vehicle_number = ? AND exit_time IS NULL", vehicleNumber).First(&row).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND exit_time IS NULL", row.ID).Delete(&sessionRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ListActiveSlots returns the occupied slot numbers with the given prefix.
// Display and diagnostics only; allocation decisions go through
// ReserveIfFree.
func (r *LedgerRepository) ListActiveSlots(ctx context.Context, prefix string) (map[string]struct{}, error) {
	var slots []string
	err := r.db.WithContext(ctx).Model(&sessionRow{}).
		Where("slot_number LIKE ? AND exit_time IS NULL", prefix+"%").
		Pluck("slot_number", &slots).Error
	if err != nil {
		return nil, err
	}
	occupied := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		occupied[s] = struct{}{}
	}
	return occupied, nil
}

// ListActiveSessions returns every active session, ordered by slot number.
func (r *LedgerRepository) ListActiveSessions(ctx context.Context) ([]parking.ParkingSession, error) {
	var rows []sessionRow
	err := r.db.WithContext(ctx).
		Where("exit_time IS NULL").
		Order("slot_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSessions(rows), nil
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	VehicleNumber *string
	ActiveOnly    bool
	Limit         int
	Offset        int
}

// ListSessions returns sessions newest-entry first, optionally filtered.
func (r *LedgerRepository) ListSessions(ctx context.Context, filter SessionFilter) ([]parking.ParkingSession, error) {
	query := r.db.WithContext(ctx).Model(&sessionRow{})
	if filter.VehicleNumber != nil {
		query = query.Where("vehicle_number = ?", *filter.VehicleNumber)
	}
	if filter.ActiveOnly {
		query = query.Where("exit_time IS NULL")
	}
	query = query.Order("entry_time DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []sessionRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSessions(rows), nil
}

// DeleteSessionByID removes one session row regardless of state (admin
// cleanup from the dashboard). ErrNotFound when no such row exists.
func (r *LedgerRepository) DeleteSessionByID(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&sessionRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateGateEvent persists the audit record for a finalized gate decision.
func (r *LedgerRepository) CreateGateEvent(ctx context.Context, event *parking.GateEvent) error {
	candidates, err := json.Marshal(event.Candidates)
	if err != nil {
		return err
	}

	row := gateEventRow{
		EventID:           event.EventID,
		StationID:         event.StationID,
		Direction:         string(event.Direction),
		PlateText:         event.PlateText,
		IsEV:              event.IsEV,
		UsedValidMajority: event.UsedValidMajority,
		Candidates:        datatypes.JSON(candidates),
		Outcome:           string(event.Outcome),
		EventTime:         event.EventTime,
	}
	if event.SlotNumber != "" {
		row.SlotNumber = &event.SlotNumber
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	event.ID = row.ID
	return nil
}

// ListGateEvents returns the most recent gate events, newest first.
func (r *LedgerRepository) ListGateEvents(ctx context.Context, limit int) ([]parking.GateEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []gateEventRow
	err := r.db.WithContext(ctx).
		Order("event_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]parking.GateEvent, 0, len(rows))
	for _, row := range rows {
		event := parking.GateEvent{
			ID:                row.ID,
			EventID:           row.EventID,
			StationID:         row.StationID,
			Direction:         parking.Direction(row.Direction),
			PlateText:         row.PlateText,
			IsEV:              row.IsEV,
			UsedValidMajority: row.UsedValidMajority,
			Outcome:           parking.GateOutcome(row.Outcome),
			EventTime:         row.EventTime,
		}
		if row.SlotNumber != nil {
			event.SlotNumber = *row.SlotNumber
		}
		if len(row.Candidates) > 0 {
			_ = json.Unmarshal(row.Candidates, &event.Candidates)
		}
		events = append(events, event)
	}
	return events, nil
}

func toDomainSessions(rows []sessionRow) []parking.ParkingSession {
	sessions := make([]parking.ParkingSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, *row.toDomain())
	}
	return sessions
}
