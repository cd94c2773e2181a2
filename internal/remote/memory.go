package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetsync/internal/model"
)

// Memory is an in-process Gateway used when no DATABASE_URL is set and as
// the test double for the synchronized store. It keeps the same row-level
// semantics as Postgres: soft deletes for vehicles/drivers, hard deletes
// for routes, identical ordering.
type Memory struct {
	mu       sync.Mutex
	vehicles map[string]model.Vehicle
	vehSeq   []string // insertion order
	vehDel   map[string]bool
	drivers  map[string]model.Driver
	drvDel   map[string]bool
	routes   map[string]model.Route
	routeSeq []string
	pings    map[string][]model.GPSPing // routeID -> pings, insertion order

	failNext map[string]error
	calls    map[string]int

	// OnVehicleChange mirrors the remote push channel: it fires after a
	// vehicle insert/update/delete commits, with the mutex released so
	// the hook may block on I/O. Set before first use; nil by default.
	OnVehicleChange func(eventType string, v model.Vehicle)

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		vehicles: map[string]model.Vehicle{},
		vehDel:   map[string]bool{},
		drivers:  map[string]model.Driver{},
		drvDel:   map[string]bool{},
		routes:   map[string]model.Route{},
		pings:    map[string][]model.GPSPing{},
		failNext: map[string]error{},
		calls:    map[string]int{},
		now:      time.Now,
	}
}

// FailNext makes the next call of op (e.g. "routes.create") return err.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	m.failNext[op] = err
	m.mu.Unlock()
}

// Calls reports how many times op was invoked, failures included.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// enter records the call and pops any injected failure. Callers hold mu.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

// Vehicles

func (m *Memory) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("vehicles.getAll"); err != nil {
		return nil, dataErr("vehicles", "getAll", err)
	}
	out := []model.Vehicle{}
	for i := len(m.vehSeq) - 1; i >= 0; i-- { // created_at desc
		id := m.vehSeq[i]
		if m.vehDel[id] {
			continue
		}
		out = append(out, m.vehicles[id])
	}
	return out, nil
}

func (m *Memory) VehicleByID(ctx context.Context, id string) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("vehicles.getById"); err != nil {
		return model.Vehicle{}, dataErr("vehicles", "getById", err)
	}
	v, ok := m.vehicles[id]
	if !ok {
		return model.Vehicle{}, ErrNotFound
	}
	return v, nil
}

func (m *Memory) CreateVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	if err := model.ValidatePlate(v.Plate); err != nil {
		return model.Vehicle{}, err
	}
	m.mu.Lock()
	if err := m.enter("vehicles.create"); err != nil {
		m.mu.Unlock()
		return model.Vehicle{}, dataErr("vehicles", "create", err)
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.Plate = model.FormatPlate(v.Plate)
	m.vehicles[v.ID] = v
	m.vehSeq = append(m.vehSeq, v.ID)
	m.mu.Unlock()
	m.vehicleChanged("INSERT", v)
	return v, nil
}

func (m *Memory) UpdateVehicle(ctx context.Context, id string, patch VehiclePatch) (model.Vehicle, error) {
	m.mu.Lock()
	if err := m.enter("vehicles.update"); err != nil {
		m.mu.Unlock()
		return model.Vehicle{}, dataErr("vehicles", "update", err)
	}
	v, ok := m.vehicles[id]
	if !ok {
		m.mu.Unlock()
		return model.Vehicle{}, ErrNotFound
	}
	if patch.Plate != nil {
		if err := model.ValidatePlate(*patch.Plate); err != nil {
			m.mu.Unlock()
			return model.Vehicle{}, err
		}
		v.Plate = model.FormatPlate(*patch.Plate)
	}
	if patch.Model != nil { v.Model = *patch.Model }
	if patch.Status != nil { v.Status = *patch.Status }
	if patch.Mileage != nil { v.Mileage = *patch.Mileage }
	if patch.FuelLevel != nil { v.FuelLevel = *patch.FuelLevel }
	if patch.NextService != nil { v.NextService = *patch.NextService }
	if patch.Location != nil { v.Location = patch.Location }
	if patch.Documents != nil { v.Documents = patch.Documents }
	m.vehicles[id] = v
	m.mu.Unlock()
	m.vehicleChanged("UPDATE", v)
	return v, nil
}

func (m *Memory) DeleteVehicle(ctx context.Context, id string) error {
	m.mu.Lock()
	if err := m.enter("vehicles.delete"); err != nil {
		m.mu.Unlock()
		return dataErr("vehicles", "delete", err)
	}
	v, ok := m.vehicles[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.vehDel[id] = true // soft delete: row retained
	m.mu.Unlock()
	m.vehicleChanged("DELETE", v)
	return nil
}

func (m *Memory) VehiclesByStatus(ctx context.Context, status model.VehicleStatus) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("vehicles.getByStatus"); err != nil {
		return nil, dataErr("vehicles", "getByStatus", err)
	}
	out := []model.Vehicle{}
	for i := len(m.vehSeq) - 1; i >= 0; i-- {
		id := m.vehSeq[i]
		if m.vehDel[id] {
			continue
		}
		if v := m.vehicles[id]; v.Status == status {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) MaintenanceDueWithin(ctx context.Context, days int) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("vehicles.maintenanceDue"); err != nil {
		return nil, dataErr("vehicles", "maintenanceDue", err)
	}
	from := m.now()
	until := from.AddDate(0, 0, days)
	out := []model.Vehicle{}
	for i := len(m.vehSeq) - 1; i >= 0; i-- {
		id := m.vehSeq[i]
		if m.vehDel[id] {
			continue
		}
		v := m.vehicles[id]
		due, err := time.Parse("2006-01-02", v.NextService)
		if err != nil {
			continue
		}
		if !due.Before(from.Truncate(24*time.Hour)) && !due.After(until) {
			out = append(out, v)
		}
	}
	return out, nil
}

// vehicleChanged runs the hook outside the mutex: hooks publish into
// brokers and may block on network I/O.
func (m *Memory) vehicleChanged(eventType string, v model.Vehicle) {
	if m.OnVehicleChange != nil {
		m.OnVehicleChange(eventType, v)
	}
}

// Drivers

func (m *Memory) Drivers(ctx context.Context) ([]model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("drivers.getAll"); err != nil {
		return nil, dataErr("drivers", "getAll", err)
	}
	out := []model.Driver{}
	for id, d := range m.drivers {
		if m.drvDel[id] {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DriverByID(ctx context.Context, id string) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("drivers.getById"); err != nil {
		return model.Driver{}, dataErr("drivers", "getById", err)
	}
	d, ok := m.drivers[id]
	if !ok {
		return model.Driver{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
	if err := model.ValidateRUT(d.RUT); err != nil {
		return model.Driver{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("drivers.create"); err != nil {
		return model.Driver{}, dataErr("drivers", "create", err)
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	m.drivers[d.ID] = d
	return d, nil
}

func (m *Memory) UpdateDriver(ctx context.Context, id string, patch DriverPatch) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("drivers.update"); err != nil {
		return model.Driver{}, dataErr("drivers", "update", err)
	}
	d, ok := m.drivers[id]
	if !ok {
		return model.Driver{}, ErrNotFound
	}
	if patch.Name != nil { d.Name = *patch.Name }
	if patch.LicenseType != nil { d.LicenseType = *patch.LicenseType }
	if patch.LicenseExpiry != nil { d.LicenseExpiry = *patch.LicenseExpiry }
	if patch.Status != nil { d.Status = *patch.Status }
	m.drivers[id] = d
	return d, nil
}

func (m *Memory) DeleteDriver(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("drivers.delete"); err != nil {
		return dataErr("drivers", "delete", err)
	}
	if _, ok := m.drivers[id]; !ok {
		return ErrNotFound
	}
	m.drvDel[id] = true
	return nil
}

func (m *Memory) AvailableDrivers(ctx context.Context) ([]model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("drivers.getAvailable"); err != nil {
		return nil, dataErr("drivers", "getAvailable", err)
	}
	out := []model.Driver{}
	for id, d := range m.drivers {
		if !m.drvDel[id] && d.Status == model.DriverAvailable {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Routes

func (m *Memory) Routes(ctx context.Context) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("routes.getAll"); err != nil {
		return nil, dataErr("routes", "getAll", err)
	}
	out := []model.Route{}
	for i := len(m.routeSeq) - 1; i >= 0; i-- { // created_at desc
		if r, ok := m.routes[m.routeSeq[i]]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) RouteByID(ctx context.Context, id string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("routes.getById"); err != nil {
		return model.Route{}, dataErr("routes", "getById", err)
	}
	r, ok := m.routes[id]
	if !ok {
		return model.Route{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) CreateRoute(ctx context.Context, r model.Route) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("routes.create"); err != nil {
		return model.Route{}, dataErr("routes", "create", err)
	}
	if _, exists := m.routes[r.ID]; !exists {
		m.routeSeq = append(m.routeSeq, r.ID)
	}
	m.routes[r.ID] = r
	return r, nil
}

func (m *Memory) UpdateRoute(ctx context.Context, id string, patch RoutePatch) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("routes.update"); err != nil {
		return model.Route{}, dataErr("routes", "update", err)
	}
	r, ok := m.routes[id]
	if !ok {
		return model.Route{}, ErrNotFound
	}
	if patch.Status != nil { r.Status = *patch.Status }
	if patch.Driver != nil { r.Driver = *patch.Driver }
	if patch.Proof != nil {
		r.Proof = patch.Proof
		r.Status = model.StatusCompleted
	}
	m.routes[id] = r
	return r, nil
}

func (m *Memory) DeleteRoute(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("routes.delete"); err != nil {
		return dataErr("routes", "delete", err)
	}
	// hard delete; deleting an absent id is not an error
	if _, ok := m.routes[id]; ok {
		delete(m.routes, id)
		for i, rid := range m.routeSeq {
			if rid == id {
				m.routeSeq = append(m.routeSeq[:i], m.routeSeq[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (m *Memory) ActiveRoutes(ctx context.Context) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("routes.getActive"); err != nil {
		return nil, dataErr("routes", "getActive", err)
	}
	out := []model.Route{}
	for i := len(m.routeSeq) - 1; i >= 0; i-- {
		r, ok := m.routes[m.routeSeq[i]]
		if ok && r.Status != model.StatusCompleted {
			out = append(out, r)
		}
	}
	return out, nil
}

// GPS tracking

func (m *Memory) RecordPing(ctx context.Context, p model.GPSPing) (model.GPSPing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("gps.record"); err != nil {
		return model.GPSPing{}, dataErr("gps_tracking", "record", err)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Timestamp == 0 {
		p.Timestamp = m.now().UnixMilli()
	}
	m.pings[p.RouteID] = append(m.pings[p.RouteID], p)
	return p, nil
}

func (m *Memory) RouteHistory(ctx context.Context, routeID string) ([]model.GPSPing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("gps.history"); err != nil {
		return nil, dataErr("gps_tracking", "history", err)
	}
	src := m.pings[routeID]
	out := append([]model.GPSPing(nil), src...) // timestamp asc = insertion order
	return out, nil
}
