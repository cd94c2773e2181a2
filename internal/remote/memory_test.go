package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetsync/internal/model"
)

func TestVehicleSoftDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v1, err := m.CreateVehicle(ctx, model.Vehicle{Plate: "BCYT91", Model: "Volvo FH16", Status: model.VehicleActive})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v2, err := m.CreateVehicle(ctx, model.Vehicle{Plate: "AB1234", Model: "Scania R450", Status: model.VehicleIdle})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.DeleteVehicle(ctx, v1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err := m.Vehicles(ctx)
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != v2.ID {
		t.Fatalf("soft-deleted vehicle still listed: %+v", all)
	}
	// row is retained: lookup by id still works
	if _, err := m.VehicleByID(ctx, v1.ID); err != nil {
		t.Fatalf("byId after soft delete: %v", err)
	}
}

func TestVehicleOrderingNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a, _ := m.CreateVehicle(ctx, model.Vehicle{Plate: "BCYT91"})
	b, _ := m.CreateVehicle(ctx, model.Vehicle{Plate: "AB1234"})
	all, err := m.Vehicles(ctx)
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(all) != 2 || all[0].ID != b.ID || all[1].ID != a.ID {
		t.Fatalf("want newest first, got %+v", all)
	}
}

func TestVehicleCreateRejectsBadPlate(t *testing.T) {
	m := NewMemory()
	if _, err := m.CreateVehicle(context.Background(), model.Vehicle{Plate: "NOPE"}); err == nil {
		t.Fatal("want validation error")
	}
	if m.Calls("vehicles.create") != 0 {
		t.Fatal("validation must reject before the remote write is attempted")
	}
}

func TestVehiclePartialUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v, _ := m.CreateVehicle(ctx, model.Vehicle{Plate: "BCYT91", Model: "Volvo FH16", Mileage: 1000, FuelLevel: 80})
	st := model.VehicleMaintenance
	got, err := m.UpdateVehicle(ctx, v.ID, VehiclePatch{Status: &st})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// absent fields stay untouched
	if got.Model != "Volvo FH16" || got.Mileage != 1000 || got.FuelLevel != 80 {
		t.Fatalf("partial update clobbered fields: %+v", got)
	}
	if got.Status != model.VehicleMaintenance {
		t.Fatalf("status not applied: %+v", got)
	}
}

func TestDriversOrderedByName(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.CreateDriver(ctx, model.Driver{Name: "Jorge", RUT: "11111111-1", Status: model.DriverAvailable}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateDriver(ctx, model.Driver{Name: "Ana", RUT: "12345678-5", Status: model.DriverOffDuty}); err != nil {
		t.Fatalf("create: %v", err)
	}
	all, err := m.Drivers(ctx)
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Ana" || all[1].Name != "Jorge" {
		t.Fatalf("want name asc, got %+v", all)
	}
	avail, err := m.AvailableDrivers(ctx)
	if err != nil {
		t.Fatalf("getAvailable: %v", err)
	}
	if len(avail) != 1 || avail[0].Name != "Jorge" {
		t.Fatalf("available filter: %+v", avail)
	}
}

func TestDriverCreateRejectsBadRUT(t *testing.T) {
	m := NewMemory()
	if _, err := m.CreateDriver(context.Background(), model.Driver{Name: "X", RUT: "12345678-9"}); err == nil {
		t.Fatal("want validation error")
	}
}

func TestRouteHardDeleteIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	r := model.Route{ID: "r1", Origin: "Osorno", Destination: "Puerto Montt", Status: model.StatusPending, Timestamp: 1}
	if _, err := m.CreateRoute(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.DeleteRoute(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteRoute(ctx, "r1"); err != nil {
		t.Fatalf("second delete must be a no-op, got %v", err)
	}
	if _, err := m.RouteByID(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRouteProofForcesCompleted(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.CreateRoute(ctx, model.Route{ID: "r1", Status: model.StatusInProgress}); err != nil {
		t.Fatalf("create: %v", err)
	}
	proof := &model.DeliveryProof{Signature: "data:image/png;base64,AAA", DeliveredAt: 99}
	got, err := m.UpdateRoute(ctx, "r1", RoutePatch{Proof: proof})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.StatusCompleted || got.Proof == nil {
		t.Fatalf("proof must force Completed atomically: %+v", got)
	}
}

func TestFailNextInjection(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("network down")
	m.FailNext("routes.getAll", boom)
	if _, err := m.Routes(ctx); !errors.Is(err, boom) {
		t.Fatalf("want injected error, got %v", err)
	}
	var de *DataError
	m.FailNext("routes.getAll", boom)
	_, err := m.Routes(ctx)
	if !errors.As(err, &de) || de.Collection != "routes" || de.Op != "getAll" {
		t.Fatalf("want typed DataError, got %v", err)
	}
	// consumed: next call succeeds
	if _, err := m.Routes(ctx); err != nil {
		t.Fatalf("failure should be one-shot: %v", err)
	}
	if m.Calls("routes.getAll") != 3 {
		t.Fatalf("calls: got %d", m.Calls("routes.getAll"))
	}
}

func TestMaintenanceDueWindow(t *testing.T) {
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	ctx := context.Background()
	mk := func(plate, due string) {
		if _, err := m.CreateVehicle(ctx, model.Vehicle{Plate: plate, NextService: due}); err != nil {
			t.Fatalf("create %s: %v", plate, err)
		}
	}
	mk("BCYT91", "2026-03-10") // due within 30d
	mk("AB1234", "2026-06-01") // too far out
	mk("CD5678", "2026-01-01") // already past
	due, err := m.MaintenanceDueWithin(ctx, 30)
	if err != nil {
		t.Fatalf("maintenanceDue: %v", err)
	}
	if len(due) != 1 || due[0].Plate != "BCYT91" {
		t.Fatalf("window filter: %+v", due)
	}
}

func TestVehicleChangeHook(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var events []string
	m.OnVehicleChange = func(eventType string, v model.Vehicle) {
		events = append(events, eventType)
	}
	v, _ := m.CreateVehicle(ctx, model.Vehicle{Plate: "BCYT91"})
	st := model.VehicleIdle
	if _, err := m.UpdateVehicle(ctx, v.ID, VehiclePatch{Status: &st}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := m.DeleteVehicle(ctx, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := []string{"INSERT", "UPDATE", "DELETE"}
	if len(events) != 3 {
		t.Fatalf("events: %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events: got %v, want %v", events, want)
		}
	}
}

func TestVehicleChangeHookRunsUnlocked(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	// a hook reading back through the gateway deadlocks if it fires
	// while the mutex is still held
	var seen model.Vehicle
	m.OnVehicleChange = func(eventType string, v model.Vehicle) {
		got, err := m.VehicleByID(ctx, v.ID)
		if err != nil {
			t.Errorf("read-back from hook: %v", err)
			return
		}
		seen = got
	}
	v, err := m.CreateVehicle(ctx, model.Vehicle{Plate: "BCYT91", Model: "Volvo FH"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if seen.ID != v.ID {
		t.Fatalf("hook did not observe the committed row: %+v", seen)
	}
}
