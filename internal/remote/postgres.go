package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetsync/internal/model"
)

// Postgres is the Gateway over the remote relational store.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the four collections if missing. Dev helper, mirrors the
// shape the managed backend provisions.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vehicles (
			id UUID PRIMARY KEY,
			plate TEXT NOT NULL UNIQUE,
			model TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Idle',
			mileage INT NOT NULL DEFAULT 0,
			fuel_level INT NOT NULL DEFAULT 0,
			next_service TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			documents JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS drivers (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			rut TEXT NOT NULL,
			license_type TEXT NOT NULL DEFAULT '',
			license_expiry TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Available',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			origin TEXT NOT NULL,
			destination TEXT NOT NULL,
			distance TEXT NOT NULL DEFAULT '',
			estimated_price TEXT NOT NULL DEFAULT '',
			vehicle_type TEXT NOT NULL DEFAULT '',
			driver_name TEXT,
			vehicle_plate TEXT,
			created_at BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Pending',
			proof JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS gps_tracking (
			id UUID PRIMARY KEY,
			route_id TEXT NOT NULL,
			vehicle_id TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			speed DOUBLE PRECISION NOT NULL DEFAULT 0,
			engine_on BOOLEAN NOT NULL DEFAULT false,
			timestamp BIGINT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const vehicleCols = `id::text, plate, model, status, mileage, fuel_level, next_service, latitude, longitude, documents`

func scanVehicle(s interface{ Scan(...any) error }) (model.Vehicle, error) {
	var r vehicleRow
	err := s.Scan(&r.ID, &r.Plate, &r.Model, &r.Status, &r.Mileage, &r.FuelLevel, &r.NextService, &r.Latitude, &r.Longitude, &r.Documents)
	if err != nil {
		return model.Vehicle{}, err
	}
	return vehicleFromRow(r)
}

func (p *Postgres) vehicleQuery(ctx context.Context, op, where string, args ...any) ([]model.Vehicle, error) {
	q := `SELECT ` + vehicleCols + ` FROM vehicles WHERE deleted_at IS NULL` + where + ` ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dataErr("vehicles", op, err)
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, dataErr("vehicles", op, err)
		}
		out = append(out, v)
	}
	return out, dataErr("vehicles", op, rows.Err())
}

func (p *Postgres) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	return p.vehicleQuery(ctx, "getAll", "")
}

func (p *Postgres) VehicleByID(ctx context.Context, id string) (model.Vehicle, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+vehicleCols+` FROM vehicles WHERE id=$1`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vehicle{}, ErrNotFound
	}
	if err != nil {
		return model.Vehicle{}, dataErr("vehicles", "getById", err)
	}
	return v, nil
}

func (p *Postgres) CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	if err := model.ValidatePlate(v.Plate); err != nil {
		return model.Vehicle{}, err
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.Plate = model.FormatPlate(v.Plate)
	r := vehicleToRow(v)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, plate, model, status, mileage, fuel_level, next_service, latitude, longitude, documents)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.Plate, r.Model, r.Status, r.Mileage, r.FuelLevel, r.NextService, r.Latitude, r.Longitude, nullIfEmptyBytes(r.Documents))
	if err != nil {
		return model.Vehicle{}, dataErr("vehicles", "create", err)
	}
	return p.VehicleByID(ctx, v.ID)
}

func (p *Postgres) UpdateVehicle(ctx context.Context, id string, patch VehiclePatch) (model.Vehicle, error) {
	set := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Plate != nil {
		if err := model.ValidatePlate(*patch.Plate); err != nil {
			return model.Vehicle{}, err
		}
		add("plate", model.FormatPlate(*patch.Plate))
	}
	if patch.Model != nil {
		add("model", *patch.Model)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Mileage != nil {
		add("mileage", *patch.Mileage)
	}
	if patch.FuelLevel != nil {
		add("fuel_level", *patch.FuelLevel)
	}
	if patch.NextService != nil {
		add("next_service", *patch.NextService)
	}
	if patch.Location != nil {
		add("latitude", patch.Location.Lat)
		add("longitude", patch.Location.Lng)
	}
	if patch.Documents != nil {
		r := vehicleToRow(model.Vehicle{Documents: patch.Documents})
		add("documents", r.Documents)
	}
	if len(set) == 0 {
		return p.VehicleByID(ctx, id)
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE vehicles SET %s WHERE id=$%d`, strings.Join(set, ", "), len(args))
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Vehicle{}, dataErr("vehicles", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Vehicle{}, ErrNotFound
	}
	return p.VehicleByID(ctx, id)
}

func (p *Postgres) DeleteVehicle(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE vehicles SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return dataErr("vehicles", "delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) VehiclesByStatus(ctx context.Context, status model.VehicleStatus) ([]model.Vehicle, error) {
	return p.vehicleQuery(ctx, "getByStatus", ` AND status=$1`, string(status))
}

func (p *Postgres) MaintenanceDueWithin(ctx context.Context, days int) ([]model.Vehicle, error) {
	from := time.Now().Format("2006-01-02")
	until := time.Now().AddDate(0, 0, days).Format("2006-01-02")
	return p.vehicleQuery(ctx, "maintenanceDue", ` AND next_service >= $1 AND next_service <= $2`, from, until)
}

const driverCols = `id::text, name, rut, license_type, license_expiry, status`

func scanDriver(s interface{ Scan(...any) error }) (model.Driver, error) {
	var r driverRow
	err := s.Scan(&r.ID, &r.Name, &r.RUT, &r.LicenseType, &r.LicenseExpiry, &r.Status)
	if err != nil {
		return model.Driver{}, err
	}
	return driverFromRow(r), nil
}

func (p *Postgres) driverQuery(ctx context.Context, op, where string, args ...any) ([]model.Driver, error) {
	q := `SELECT ` + driverCols + ` FROM drivers WHERE deleted_at IS NULL` + where + ` ORDER BY name ASC`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dataErr("drivers", op, err)
	}
	defer rows.Close()
	out := []model.Driver{}
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, dataErr("drivers", op, err)
		}
		out = append(out, d)
	}
	return out, dataErr("drivers", op, rows.Err())
}

func (p *Postgres) Drivers(ctx context.Context) ([]model.Driver, error) {
	return p.driverQuery(ctx, "getAll", "")
}

func (p *Postgres) DriverByID(ctx context.Context, id string) (model.Driver, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+driverCols+` FROM drivers WHERE id=$1`, id)
	d, err := scanDriver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Driver{}, ErrNotFound
	}
	if err != nil {
		return model.Driver{}, dataErr("drivers", "getById", err)
	}
	return d, nil
}

func (p *Postgres) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
	if err := model.ValidateRUT(d.RUT); err != nil {
		return model.Driver{}, err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	r := driverToRow(d)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO drivers (id, name, rut, license_type, license_expiry, status) VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.Name, r.RUT, r.LicenseType, r.LicenseExpiry, r.Status)
	if err != nil {
		return model.Driver{}, dataErr("drivers", "create", err)
	}
	return p.DriverByID(ctx, d.ID)
}

func (p *Postgres) UpdateDriver(ctx context.Context, id string, patch DriverPatch) (model.Driver, error) {
	set := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.LicenseType != nil {
		add("license_type", *patch.LicenseType)
	}
	if patch.LicenseExpiry != nil {
		add("license_expiry", *patch.LicenseExpiry)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if len(set) == 0 {
		return p.DriverByID(ctx, id)
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE drivers SET %s WHERE id=$%d`, strings.Join(set, ", "), len(args))
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Driver{}, dataErr("drivers", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Driver{}, ErrNotFound
	}
	return p.DriverByID(ctx, id)
}

func (p *Postgres) DeleteDriver(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE drivers SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return dataErr("drivers", "delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AvailableDrivers(ctx context.Context) ([]model.Driver, error) {
	return p.driverQuery(ctx, "getAvailable", ` AND status=$1`, string(model.DriverAvailable))
}

const routeCols = `id, origin, destination, distance, estimated_price, vehicle_type, driver_name, vehicle_plate, created_at, status, proof`

func scanRoute(s interface{ Scan(...any) error }) (model.Route, error) {
	var r routeRow
	err := s.Scan(&r.ID, &r.Origin, &r.Destination, &r.Distance, &r.EstimatedPrice, &r.VehicleType, &r.DriverName, &r.VehiclePlate, &r.CreatedAt, &r.Status, &r.Proof)
	if err != nil {
		return model.Route{}, err
	}
	return routeFromRow(r)
}

func (p *Postgres) routeQuery(ctx context.Context, op, where string, args ...any) ([]model.Route, error) {
	q := `SELECT ` + routeCols + ` FROM routes` + where + ` ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dataErr("routes", op, err)
	}
	defer rows.Close()
	out := []model.Route{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, dataErr("routes", op, err)
		}
		out = append(out, r)
	}
	return out, dataErr("routes", op, rows.Err())
}

func (p *Postgres) Routes(ctx context.Context) ([]model.Route, error) {
	return p.routeQuery(ctx, "getAll", "")
}

func (p *Postgres) RouteByID(ctx context.Context, id string) (model.Route, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes WHERE id=$1`, id)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Route{}, ErrNotFound
	}
	if err != nil {
		return model.Route{}, dataErr("routes", "getById", err)
	}
	return r, nil
}

func (p *Postgres) CreateRoute(ctx context.Context, rt model.Route) (model.Route, error) {
	r := routeToRow(rt)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO routes (id, origin, destination, distance, estimated_price, vehicle_type, driver_name, vehicle_plate, created_at, status, proof)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.Origin, r.Destination, r.Distance, r.EstimatedPrice, r.VehicleType, r.DriverName, r.VehiclePlate, r.CreatedAt, r.Status, nullIfEmptyBytes(r.Proof))
	if err != nil {
		return model.Route{}, dataErr("routes", "create", err)
	}
	return p.RouteByID(ctx, rt.ID)
}

func (p *Postgres) UpdateRoute(ctx context.Context, id string, patch RoutePatch) (model.Route, error) {
	set := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Status != nil && patch.Proof == nil {
		add("status", string(*patch.Status))
	}
	if patch.Driver != nil {
		add("driver_name", *patch.Driver)
	}
	if patch.Proof != nil {
		r := routeToRow(model.Route{Proof: patch.Proof})
		add("proof", r.Proof)
		add("status", string(model.StatusCompleted))
	}
	if len(set) == 0 {
		return p.RouteByID(ctx, id)
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE routes SET %s WHERE id=$%d`, strings.Join(set, ", "), len(args))
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Route{}, dataErr("routes", "update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Route{}, ErrNotFound
	}
	return p.RouteByID(ctx, id)
}

func (p *Postgres) DeleteRoute(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM routes WHERE id=$1`, id)
	return dataErr("routes", "delete", err)
}

func (p *Postgres) ActiveRoutes(ctx context.Context) ([]model.Route, error) {
	return p.routeQuery(ctx, "getActive", ` WHERE status = ANY($1)`,
		[]string{string(model.StatusPending), string(model.StatusInProgress)})
}

func (p *Postgres) RecordPing(ctx context.Context, ping model.GPSPing) (model.GPSPing, error) {
	if ping.ID == "" {
		ping.ID = uuid.New().String()
	}
	if ping.Timestamp == 0 {
		ping.Timestamp = time.Now().UnixMilli()
	}
	r := pingToRow(ping)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO gps_tracking (id, route_id, vehicle_id, latitude, longitude, speed, engine_on, timestamp)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.RouteID, r.VehicleID, r.Latitude, r.Longitude, r.Speed, r.EngineOn, r.Timestamp)
	if err != nil {
		return model.GPSPing{}, dataErr("gps_tracking", "record", err)
	}
	return ping, nil
}

func (p *Postgres) RouteHistory(ctx context.Context, routeID string) ([]model.GPSPing, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, route_id, vehicle_id, latitude, longitude, speed, engine_on, timestamp
		 FROM gps_tracking WHERE route_id=$1 ORDER BY timestamp ASC`, routeID)
	if err != nil {
		return nil, dataErr("gps_tracking", "history", err)
	}
	defer rows.Close()
	out := []model.GPSPing{}
	for rows.Next() {
		var r pingRow
		if err := rows.Scan(&r.ID, &r.RouteID, &r.VehicleID, &r.Latitude, &r.Longitude, &r.Speed, &r.EngineOn, &r.Timestamp); err != nil {
			return nil, dataErr("gps_tracking", "history", err)
		}
		out = append(out, pingFromRow(r))
	}
	return out, dataErr("gps_tracking", "history", rows.Err())
}

func nullIfEmptyBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
