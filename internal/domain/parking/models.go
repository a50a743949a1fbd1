package parking

import (
	"time"
)

// ParkingSession is one vehicle's stay in the lot. A session is active while
// ExitTime is nil; exit_time being null in the ledger is the sole occupancy
// signal.
type ParkingSession struct {
	ID            int64      `json:"id"`
	VehicleNumber string     `json:"vehicle_number"`
	IsEV          bool       `json:"is_ev"`
	SlotNumber    string     `json:"slot_number"`
	EntryTime     time.Time  `json:"entry_time"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
}

// Active reports whether the session still occupies its slot.
func (s *ParkingSession) Active() bool {
	return s.ExitTime == nil
}

// EntryStatus is the terminal, user-visible result of an entry attempt.
type EntryStatus string

const (
	EntryAssigned      EntryStatus = "assigned"
	EntryAlreadyParked EntryStatus = "already_parked"
	EntryNoSlot        EntryStatus = "no_slot_available"
)

// EntryResult reports the slot decision for an entering vehicle.
type EntryResult struct {
	Status     EntryStatus     `json:"status"`
	SlotNumber string          `json:"slot_number,omitempty"`
	Session    *ParkingSession `json:"session,omitempty"`
}

// ExitStatus is the terminal result of an exit attempt.
type ExitStatus string

const (
	ExitReleased  ExitStatus = "released"
	ExitNotParked ExitStatus = "not_parked"
)

// ExitResult reports the release decision for a leaving vehicle.
type ExitResult struct {
	Status     ExitStatus `json:"status"`
	SlotNumber string     `json:"slot_number,omitempty"`
}

// GateOutcome classifies what a finished capture session led to.
type GateOutcome string

const (
	OutcomeAssigned       GateOutcome = "assigned"
	OutcomeAlreadyParked  GateOutcome = "already_parked"
	OutcomeNoSlot         GateOutcome = "no_slot_available"
	OutcomeReleased       GateOutcome = "released"
	OutcomeNotParked      GateOutcome = "not_parked"
	OutcomeFormatRejected GateOutcome = "format_rejected"
)

// Direction identifies which way a gate station moves traffic.
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// GateEvent is the audit record of one finalized consensus decision at a gate.
type GateEvent struct {
	ID                int64       `json:"id"`
	EventID           string      `json:"event_id"`
	StationID         string      `json:"station_id"`
	Direction         Direction   `json:"direction"`
	PlateText         string      `json:"plate_text"`
	IsEV              bool        `json:"is_ev"`
	UsedValidMajority bool        `json:"used_valid_majority"`
	Candidates        []string    `json:"candidates"`
	Outcome           GateOutcome `json:"outcome"`
	SlotNumber        string      `json:"slot_number,omitempty"`
	EventTime         time.Time   `json:"event_time"`
}

// GateNotification is the payload pushed to dashboard websocket clients.
type GateNotification struct {
	EventID    string      `json:"event_id"`
	StationID  string      `json:"station_id"`
	Direction  Direction   `json:"direction"`
	PlateText  string      `json:"plate_text"`
	IsEV       bool        `json:"is_ev"`
	Outcome    GateOutcome `json:"outcome"`
	SlotNumber string      `json:"slot_number,omitempty"`
	EventTime  time.Time   `json:"event_time"`
}
