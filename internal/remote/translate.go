package remote

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"fleetsync/internal/model"
)

// Wire row shapes. Columns are flat snake_case; compound values (location,
// delivery proof, documents) are either flattened to scalar columns or
// stored as a jsonb blob, depending on entity. Each field has exactly one
// wire name and one app name; translation is exact in both directions.

type vehicleRow struct {
	ID          string
	Plate       string
	Model       string
	Status      string
	Mileage     int
	FuelLevel   int
	NextService string
	Latitude    sql.NullFloat64
	Longitude   sql.NullFloat64
	Documents   []byte // jsonb, nullable
}

func vehicleFromRow(r vehicleRow) (model.Vehicle, error) {
	v := model.Vehicle{
		ID:          r.ID,
		Plate:       r.Plate,
		Model:       r.Model,
		Status:      model.VehicleStatus(r.Status),
		Mileage:     r.Mileage,
		FuelLevel:   r.FuelLevel,
		NextService: r.NextService,
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		v.Location = &model.LatLng{Lat: r.Latitude.Float64, Lng: r.Longitude.Float64}
	}
	if len(r.Documents) > 0 {
		if err := json.Unmarshal(r.Documents, &v.Documents); err != nil {
			return model.Vehicle{}, fmt.Errorf("vehicle %s: documents blob: %w", r.ID, err)
		}
	}
	return v, nil
}

func vehicleToRow(v model.Vehicle) vehicleRow {
	r := vehicleRow{
		ID:          v.ID,
		Plate:       v.Plate,
		Model:       v.Model,
		Status:      string(v.Status),
		Mileage:     v.Mileage,
		FuelLevel:   v.FuelLevel,
		NextService: v.NextService,
	}
	if v.Location != nil {
		r.Latitude = sql.NullFloat64{Float64: v.Location.Lat, Valid: true}
		r.Longitude = sql.NullFloat64{Float64: v.Location.Lng, Valid: true}
	}
	if len(v.Documents) > 0 {
		r.Documents, _ = json.Marshal(v.Documents)
	}
	return r
}

type driverRow struct {
	ID            string
	Name          string
	RUT           string
	LicenseType   string
	LicenseExpiry string
	Status        string
}

func driverFromRow(r driverRow) model.Driver {
	return model.Driver{
		ID:            r.ID,
		Name:          r.Name,
		RUT:           r.RUT,
		LicenseType:   r.LicenseType,
		LicenseExpiry: r.LicenseExpiry,
		Status:        model.DriverStatus(r.Status),
	}
}

func driverToRow(d model.Driver) driverRow {
	return driverRow{
		ID:            d.ID,
		Name:          d.Name,
		RUT:           d.RUT,
		LicenseType:   d.LicenseType,
		LicenseExpiry: d.LicenseExpiry,
		Status:        string(d.Status),
	}
}

type routeRow struct {
	ID             string
	Origin         string
	Destination    string
	Distance       string
	EstimatedPrice string
	VehicleType    string
	DriverName     sql.NullString
	VehiclePlate   sql.NullString
	CreatedAt      int64 // epoch ms, client-generated
	Status         string
	Proof          []byte // jsonb, nullable
}

func routeFromRow(r routeRow) (model.Route, error) {
	rt := model.Route{
		ID:             r.ID,
		Origin:         r.Origin,
		Destination:    r.Destination,
		Distance:       r.Distance,
		EstimatedPrice: r.EstimatedPrice,
		VehicleType:    r.VehicleType,
		Driver:         r.DriverName.String,
		Vehicle:        r.VehiclePlate.String,
		Timestamp:      r.CreatedAt,
		Status:         model.RouteStatus(r.Status),
	}
	if len(r.Proof) > 0 {
		var p model.DeliveryProof
		if err := json.Unmarshal(r.Proof, &p); err != nil {
			return model.Route{}, fmt.Errorf("route %s: proof blob: %w", r.ID, err)
		}
		rt.Proof = &p
	}
	return rt, nil
}

func routeToRow(rt model.Route) routeRow {
	r := routeRow{
		ID:             rt.ID,
		Origin:         rt.Origin,
		Destination:    rt.Destination,
		Distance:       rt.Distance,
		EstimatedPrice: rt.EstimatedPrice,
		VehicleType:    rt.VehicleType,
		CreatedAt:      rt.Timestamp,
		Status:         string(rt.Status),
	}
	if rt.Driver != "" {
		r.DriverName = sql.NullString{String: rt.Driver, Valid: true}
	}
	if rt.Vehicle != "" {
		r.VehiclePlate = sql.NullString{String: rt.Vehicle, Valid: true}
	}
	if rt.Proof != nil {
		r.Proof, _ = json.Marshal(rt.Proof)
	}
	return r
}

type pingRow struct {
	ID        string
	RouteID   string
	VehicleID string
	Latitude  float64
	Longitude float64
	Speed     float64
	EngineOn  bool
	Timestamp int64
}

func pingFromRow(r pingRow) model.GPSPing {
	return model.GPSPing{
		ID:        r.ID,
		RouteID:   r.RouteID,
		VehicleID: r.VehicleID,
		Lat:       r.Latitude,
		Lng:       r.Longitude,
		Speed:     r.Speed,
		EngineOn:  r.EngineOn,
		Timestamp: r.Timestamp,
	}
}

func pingToRow(p model.GPSPing) pingRow {
	return pingRow{
		ID:        p.ID,
		RouteID:   p.RouteID,
		VehicleID: p.VehicleID,
		Latitude:  p.Lat,
		Longitude: p.Lng,
		Speed:     p.Speed,
		EngineOn:  p.EngineOn,
		Timestamp: p.Timestamp,
	}
}
