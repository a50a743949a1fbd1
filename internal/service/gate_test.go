package service_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"parking-gate/internal/consensus"
	"parking-gate/internal/domain/parking"
	"parking-gate/internal/service"
)

type fakeRecorder struct {
	events []parking.GateEvent
}

func (f *fakeRecorder) CreateGateEvent(ctx context.Context, event *parking.GateEvent) error {
	f.events = append(f.events, *event)
	return nil
}

type fakeNotifier struct {
	notifications []parking.GateNotification
}

func (f *fakeNotifier) NotifyGateEvent(event parking.GateNotification) {
	f.notifications = append(f.notifications, event)
}

func TestGateServiceEntry(t *testing.T) {
	ctx := context.Background()

	Convey("Given an entry gate", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.DefaultPolicy())
		recorder := &fakeRecorder{}
		notifier := &fakeNotifier{}
		gate := service.NewGateService(allocator, recorder, notifier, "gate-1", parking.DirectionEntry, zerolog.Nop())

		Convey("When the capture produced no candidates", func() {
			decision, err := gate.HandleCapture(ctx, nil)

			Convey("Then the outcome is no-detection and nothing was touched", func() {
				So(err, ShouldBeNil)
				So(decision.NoDetection, ShouldBeTrue)
				So(ledger.activeCount(), ShouldEqual, 0)
				So(recorder.events, ShouldBeEmpty)
				So(notifier.notifications, ShouldBeEmpty)
			})
		})

		Convey("When the consensus plate is well formed", func() {
			candidates := []consensus.Candidate{
				{Text: "KA05MN0178", ValidFormat: true, IsEV: true},
				{Text: "KA05MN0178", ValidFormat: true, IsEV: true},
				{Text: "KA0SMN0178", ValidFormat: false, IsEV: false},
			}
			decision, err := gate.HandleCapture(ctx, candidates)

			Convey("Then a slot is assigned", func() {
				So(err, ShouldBeNil)
				So(decision.NoDetection, ShouldBeFalse)
				So(decision.Outcome, ShouldEqual, parking.OutcomeAssigned)
				So(decision.PlateText, ShouldEqual, "KA05MN0178")
				So(decision.IsEV, ShouldBeTrue)
				So(decision.SlotNumber, ShouldEqual, "EV1")
			})

			Convey("And an audit event with every raw candidate is recorded", func() {
				So(err, ShouldBeNil)
				So(recorder.events, ShouldHaveLength, 1)
				event := recorder.events[0]
				So(event.EventID, ShouldNotBeEmpty)
				So(event.StationID, ShouldEqual, "gate-1")
				So(event.Direction, ShouldEqual, parking.DirectionEntry)
				So(event.PlateText, ShouldEqual, "KA05MN0178")
				So(event.UsedValidMajority, ShouldBeTrue)
				So(event.Candidates, ShouldResemble, []string{"KA05MN0178", "KA05MN0178", "KA0SMN0178"})
				So(event.Outcome, ShouldEqual, parking.OutcomeAssigned)
			})

			Convey("And dashboard listeners were notified", func() {
				So(err, ShouldBeNil)
				So(notifier.notifications, ShouldHaveLength, 1)
				So(notifier.notifications[0].Outcome, ShouldEqual, parking.OutcomeAssigned)
				So(notifier.notifications[0].SlotNumber, ShouldEqual, "EV1")
			})
		})

		Convey("When every candidate is malformed", func() {
			candidates := []consensus.Candidate{
				{Text: "AB1", ValidFormat: false},
				{Text: "AB1", ValidFormat: false},
			}
			decision, err := gate.HandleCapture(ctx, candidates)

			Convey("Then the entry is rejected without touching the ledger", func() {
				So(err, ShouldBeNil)
				So(decision.Outcome, ShouldEqual, parking.OutcomeFormatRejected)
				So(decision.PlateText, ShouldEqual, "AB1")
				So(ledger.activeCount(), ShouldEqual, 0)
			})

			Convey("And the rejection is still audited", func() {
				So(err, ShouldBeNil)
				So(recorder.events, ShouldHaveLength, 1)
				So(recorder.events[0].Outcome, ShouldEqual, parking.OutcomeFormatRejected)
				So(recorder.events[0].UsedValidMajority, ShouldBeFalse)
			})
		})
	})
}

func TestGateServiceExit(t *testing.T) {
	ctx := context.Background()

	Convey("Given an exit gate over a lot with one parked vehicle", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.DefaultPolicy())
		recorder := &fakeRecorder{}
		_, err := allocator.Entry(ctx, "KA05MN0178", false)
		So(err, ShouldBeNil)
		gate := service.NewGateService(allocator, recorder, nil, "gate-out", parking.DirectionExit, zerolog.Nop())

		Convey("When the parked vehicle is read at the exit", func() {
			candidates := []consensus.Candidate{
				{Text: "KA05MN0178", ValidFormat: true},
			}
			decision, err := gate.HandleCapture(ctx, candidates)

			Convey("Then the slot is released", func() {
				So(err, ShouldBeNil)
				So(decision.Outcome, ShouldEqual, parking.OutcomeReleased)
				So(decision.SlotNumber, ShouldEqual, "A1")
				So(ledger.activeCount(), ShouldEqual, 0)
			})
		})

		Convey("When an unknown vehicle is read at the exit", func() {
			candidates := []consensus.Candidate{
				{Text: "MH12XY9999", ValidFormat: true},
			}
			decision, err := gate.HandleCapture(ctx, candidates)

			Convey("Then the outcome is not-parked and the lot is untouched", func() {
				So(err, ShouldBeNil)
				So(decision.Outcome, ShouldEqual, parking.OutcomeNotParked)
				So(ledger.activeCount(), ShouldEqual, 1)
			})
		})

		Convey("When the exit read is malformed", func() {
			candidates := []consensus.Candidate{
				{Text: "KA05MN017", ValidFormat: false},
			}
			decision, err := gate.HandleCapture(ctx, candidates)

			Convey("Then the exit still goes through the allocator", func() {
				So(err, ShouldBeNil)
				So(decision.Outcome, ShouldEqual, parking.OutcomeNotParked)
			})
		})
	})
}
