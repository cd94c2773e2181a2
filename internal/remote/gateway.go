package remote

import (
	"context"
	"errors"
	"fmt"

	"fleetsync/internal/model"
)

// Gateway is the typed CRUD boundary to the remote relational store.
// Implementations translate between the wire row shape and the in-app
// shape; callers never see raw rows.
type Gateway interface {
	// Vehicles (reversible soft delete; newest first)
	Vehicles(ctx context.Context) ([]model.Vehicle, error)
	VehicleByID(ctx context.Context, id string) (model.Vehicle, error)
	CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, patch VehiclePatch) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error
	VehiclesByStatus(ctx context.Context, status model.VehicleStatus) ([]model.Vehicle, error)
	MaintenanceDueWithin(ctx context.Context, days int) ([]model.Vehicle, error)

	// Drivers (soft delete; name ascending)
	Drivers(ctx context.Context) ([]model.Driver, error)
	DriverByID(ctx context.Context, id string) (model.Driver, error)
	CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error)
	UpdateDriver(ctx context.Context, id string, patch DriverPatch) (model.Driver, error)
	DeleteDriver(ctx context.Context, id string) error
	AvailableDrivers(ctx context.Context) ([]model.Driver, error)

	// Routes (hard delete; newest first; ids are caller-supplied)
	Routes(ctx context.Context) ([]model.Route, error)
	RouteByID(ctx context.Context, id string) (model.Route, error)
	CreateRoute(ctx context.Context, r model.Route) (model.Route, error)
	UpdateRoute(ctx context.Context, id string, patch RoutePatch) (model.Route, error)
	DeleteRoute(ctx context.Context, id string) error
	ActiveRoutes(ctx context.Context) ([]model.Route, error)

	// GPS tracking
	RecordPing(ctx context.Context, p model.GPSPing) (model.GPSPing, error)
	RouteHistory(ctx context.Context, routeID string) ([]model.GPSPing, error)
}

// ErrNotFound is returned when a record does not exist (or is soft-deleted).
var ErrNotFound = errors.New("not found")

// DataError wraps a transport or storage failure with the collection and
// operation it occurred in.
type DataError struct {
	Collection string
	Op         string
	Err        error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Collection, e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

func dataErr(collection, op string, err error) error {
	if err == nil {
		return nil
	}
	return &DataError{Collection: collection, Op: op, Err: err}
}

// Patch types carry partial updates. A nil field means "do not touch";
// it is never coerced to a zero value on the wire.

type VehiclePatch struct {
	Plate       *string
	Model       *string
	Status      *model.VehicleStatus
	Mileage     *int
	FuelLevel   *int
	NextService *string
	Location    *model.LatLng
	Documents   []model.VehicleDocument // nil = untouched
}

type DriverPatch struct {
	Name          *string
	LicenseType   *string
	LicenseExpiry *string
	Status        *model.DriverStatus
}

type RoutePatch struct {
	Status *model.RouteStatus
	Driver *string
	Proof  *model.DeliveryProof // setting a proof forces Status Completed
}
