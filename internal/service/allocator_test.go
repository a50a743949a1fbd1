package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"parking-gate/internal/domain/parking"
	"parking-gate/internal/repository"
	"parking-gate/internal/service"
)

// fakeLedger is an in-memory session store that enforces the same active
// uniqueness rules as the real one: one active session per slot and one per
// vehicle, with the reserve step atomic under a mutex.
type fakeLedger struct {
	mu     sync.Mutex
	nextID int64
	active map[string]*parking.ParkingSession // keyed by vehicle
	closed []parking.ParkingSession

	// conflictOn forces one ErrConflict per listed slot before the reserve
	// succeeds, simulating a lost race against another station.
	conflictOn map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		active:     make(map[string]*parking.ParkingSession),
		conflictOn: make(map[string]int),
	}
}

func (f *fakeLedger) FindActiveByVehicle(ctx context.Context, vehicleNumber string) (*parking.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.active[vehicleNumber]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeLedger) FindActiveBySlot(ctx context.Context, slotNumber string) (*parking.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.active {
		if session.SlotNumber == slotNumber {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) ReserveIfFree(ctx context.Context, vehicleNumber, slotNumber string, isEV bool, entryTime time.Time) (*parking.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := f.conflictOn[slotNumber]; n > 0 {
		f.conflictOn[slotNumber] = n - 1
		return nil, repository.ErrConflict
	}
	if _, ok := f.active[vehicleNumber]; ok {
		return nil, repository.ErrConflict
	}
	for _, session := range f.active {
		if session.SlotNumber == slotNumber {
			return nil, repository.ErrConflict
		}
	}

	f.nextID++
	session := &parking.ParkingSession{
		ID:            f.nextID,
		VehicleNumber: vehicleNumber,
		IsEV:          isEV,
		SlotNumber:    slotNumber,
		EntryTime:     entryTime,
	}
	f.active[vehicleNumber] = session
	copied := *session
	return &copied, nil
}

func (f *fakeLedger) CloseSession(ctx context.Context, vehicleNumber string, exitTime time.Time) (*parking.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.active[vehicleNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.active, vehicleNumber)
	session.ExitTime = &exitTime
	f.closed = append(f.closed, *session)
	copied := *session
	return &copied, nil
}

func (f *fakeLedger) DeleteActiveSession(ctx context.Context, vehicleNumber string) (*parking.ParkingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.active[vehicleNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.active, vehicleNumber)
	copied := *session
	return &copied, nil
}

func (f *fakeLedger) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

func (f *fakeLedger) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closed)
}

func newAllocator(ledger service.Ledger, policy parking.Policy) *service.AllocatorService {
	return service.NewAllocatorService(ledger, policy, zerolog.Nop())
}

func TestAllocatorEntry(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty lot with the default policy", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.DefaultPolicy())

		Convey("When a regular vehicle enters", func() {
			result, err := allocator.Entry(ctx, "KA05MN0178", false)

			Convey("Then it gets the first regular slot", func() {
				So(err, ShouldBeNil)
				So(result.Status, ShouldEqual, parking.EntryAssigned)
				So(result.SlotNumber, ShouldEqual, "A1")
			})
		})

		Convey("When an EV enters", func() {
			result, err := allocator.Entry(ctx, "KA05MN0178", true)

			Convey("Then it gets the first EV slot", func() {
				So(err, ShouldBeNil)
				So(result.Status, ShouldEqual, parking.EntryAssigned)
				So(result.SlotNumber, ShouldEqual, "EV1")
			})
		})

		Convey("When the same vehicle enters twice", func() {
			first, err := allocator.Entry(ctx, "KA05MN0178", false)
			So(err, ShouldBeNil)
			second, err := allocator.Entry(ctx, "KA05MN0178", false)

			Convey("Then the second entry reports already parked with the same slot", func() {
				So(err, ShouldBeNil)
				So(second.Status, ShouldEqual, parking.EntryAlreadyParked)
				So(second.SlotNumber, ShouldEqual, first.SlotNumber)
				So(ledger.activeCount(), ShouldEqual, 1)
			})
		})

		Convey("When the vehicle number is empty", func() {
			_, err := allocator.Entry(ctx, "", false)

			Convey("Then the input is rejected", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})

	Convey("Given a full regular pool", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.DefaultPolicy())
		for i := 0; i < parking.RegularSlotCount; i++ {
			result, err := allocator.Entry(ctx, testPlate(i), false)
			So(err, ShouldBeNil)
			So(result.Status, ShouldEqual, parking.EntryAssigned)
		}

		Convey("When one more regular vehicle enters", func() {
			result, err := allocator.Entry(ctx, "MH12XY9999", false)

			Convey("Then no slot is available and nothing was written", func() {
				So(err, ShouldBeNil)
				So(result.Status, ShouldEqual, parking.EntryNoSlot)
				So(ledger.activeCount(), ShouldEqual, parking.RegularSlotCount)
			})
		})

		Convey("But an EV still gets an EV slot", func() {
			result, err := allocator.Entry(ctx, "MH12XY9999", true)
			So(err, ShouldBeNil)
			So(result.Status, ShouldEqual, parking.EntryAssigned)
			So(result.SlotNumber, ShouldEqual, "EV1")
		})
	})

	Convey("Given a full EV pool", t, func() {
		ledger := newFakeLedger()
		for i := 0; i < parking.EVSlotCount; i++ {
			_, err := newAllocator(ledger, parking.DefaultPolicy()).Entry(ctx, testPlate(i), true)
			So(err, ShouldBeNil)
		}

		Convey("With fallback disabled an EV is turned away", func() {
			allocator := newAllocator(ledger, parking.DefaultPolicy())
			result, err := allocator.Entry(ctx, "MH12XY9999", true)
			So(err, ShouldBeNil)
			So(result.Status, ShouldEqual, parking.EntryNoSlot)
		})

		Convey("With fallback enabled an EV spills into the regular pool", func() {
			policy := parking.DefaultPolicy()
			policy.EVFallbackToRegular = true
			allocator := newAllocator(ledger, policy)
			result, err := allocator.Entry(ctx, "MH12XY9999", true)
			So(err, ShouldBeNil)
			So(result.Status, ShouldEqual, parking.EntryAssigned)
			So(result.SlotNumber, ShouldEqual, "A1")
		})
	})

	Convey("Given the women's gate policy", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.WomenGatePolicy())

		Convey("When two regular vehicles enter", func() {
			first, err := allocator.Entry(ctx, "KA05MN0178", false)
			So(err, ShouldBeNil)
			second, err := allocator.Entry(ctx, "MH12XY9999", false)
			So(err, ShouldBeNil)

			Convey("Then the high slots fill first", func() {
				So(first.SlotNumber, ShouldEqual, "A6")
				So(second.SlotNumber, ShouldEqual, "A7")
			})
		})
	})

	Convey("Given a slot lost to a concurrent reservation", t, func() {
		ledger := newFakeLedger()
		ledger.conflictOn["A1"] = 1
		allocator := newAllocator(ledger, parking.DefaultPolicy())

		Convey("When a vehicle enters", func() {
			result, err := allocator.Entry(ctx, "KA05MN0178", false)

			Convey("Then the allocator retries the next slot instead of giving up", func() {
				So(err, ShouldBeNil)
				So(result.Status, ShouldEqual, parking.EntryAssigned)
				So(result.SlotNumber, ShouldEqual, "A2")
			})
		})
	})
}

func TestAllocatorEntryConcurrent(t *testing.T) {
	ctx := context.Background()

	Convey("Given many vehicles racing for the regular pool", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.DefaultPolicy())

		const racers = 20
		results := make([]parking.EntryResult, racers)
		errs := make([]error, racers)

		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = allocator.Entry(ctx, testPlate(i), false)
			}(i)
		}
		wg.Wait()

		Convey("Then every slot is assigned exactly once", func() {
			assigned := make(map[string]int)
			noSlot := 0
			for i := 0; i < racers; i++ {
				So(errs[i], ShouldBeNil)
				switch results[i].Status {
				case parking.EntryAssigned:
					assigned[results[i].SlotNumber]++
				case parking.EntryNoSlot:
					noSlot++
				default:
					t.Fatalf("unexpected status %s", results[i].Status)
				}
			}
			So(len(assigned), ShouldEqual, parking.RegularSlotCount)
			for _, count := range assigned {
				So(count, ShouldEqual, 1)
			}
			So(noSlot, ShouldEqual, racers-parking.RegularSlotCount)
			So(ledger.activeCount(), ShouldEqual, parking.RegularSlotCount)
		})
	})
}

func TestAllocatorExit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a parked vehicle under the soft-close policy", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.DefaultPolicy())
		entry, err := allocator.Entry(ctx, "KA05MN0178", false)
		So(err, ShouldBeNil)

		Convey("When it exits", func() {
			result, err := allocator.Exit(ctx, "KA05MN0178")

			Convey("Then the slot is released and the session kept as history", func() {
				So(err, ShouldBeNil)
				So(result.Status, ShouldEqual, parking.ExitReleased)
				So(result.SlotNumber, ShouldEqual, entry.SlotNumber)
				So(ledger.activeCount(), ShouldEqual, 0)
				So(ledger.closedCount(), ShouldEqual, 1)
			})

			Convey("And a second exit is a harmless not-parked", func() {
				again, err := allocator.Exit(ctx, "KA05MN0178")
				So(err, ShouldBeNil)
				So(again.Status, ShouldEqual, parking.ExitNotParked)
				So(ledger.closedCount(), ShouldEqual, 1)
			})

			Convey("And the slot can be assigned again", func() {
				next, err := allocator.Entry(ctx, "MH12XY9999", false)
				So(err, ShouldBeNil)
				So(next.Status, ShouldEqual, parking.EntryAssigned)
				So(next.SlotNumber, ShouldEqual, entry.SlotNumber)
			})
		})
	})

	Convey("Given a parked vehicle under the hard-delete policy", t, func() {
		ledger := newFakeLedger()
		policy := parking.DefaultPolicy()
		policy.ExitMode = parking.ExitHardDelete
		allocator := newAllocator(ledger, policy)
		_, err := allocator.Entry(ctx, "KA05MN0178", false)
		So(err, ShouldBeNil)

		Convey("When it exits", func() {
			result, err := allocator.Exit(ctx, "KA05MN0178")

			Convey("Then the session row is gone entirely", func() {
				So(err, ShouldBeNil)
				So(result.Status, ShouldEqual, parking.ExitReleased)
				So(ledger.activeCount(), ShouldEqual, 0)
				So(ledger.closedCount(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a vehicle that never entered", t, func() {
		ledger := newFakeLedger()
		allocator := newAllocator(ledger, parking.DefaultPolicy())

		Convey("When it tries to exit", func() {
			result, err := allocator.Exit(ctx, "KA05MN0178")

			Convey("Then the outcome is not-parked with no mutation", func() {
				So(err, ShouldBeNil)
				So(result.Status, ShouldEqual, parking.ExitNotParked)
				So(ledger.activeCount(), ShouldEqual, 0)
				So(ledger.closedCount(), ShouldEqual, 0)
			})
		})

		Convey("When the vehicle number is empty", func() {
			_, err := allocator.Exit(ctx, "")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

// testPlate generates distinct well-formed plate numbers.
func testPlate(i int) string {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	return "KA01" + string(letters[i%26]) + "A" + "000" + string(rune('0'+i%10))
}
