package model

// Core domain types. Field names follow the in-app (camelCase) shape; the
// remote package owns the translation to the wire row shape.

// RouteStatus is the lifecycle state of a shipment. Transitions are
// monotonic: Pending -> In Progress -> Completed, never backwards.
type RouteStatus string

const (
	StatusPending    RouteStatus = "Pending"
	StatusInProgress RouteStatus = "In Progress"
	StatusCompleted  RouteStatus = "Completed"
)

func (s RouteStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Valid reports whether s is one of the known states.
func (s RouteStatus) Valid() bool { return s.rank() >= 0 }

// CanTransition reports whether moving from s to next respects the
// monotonic order. Staying in place is allowed (idempotent updates).
func (s RouteStatus) CanTransition(next RouteStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

// Route is a registered shipment. IDs are client-generated at creation
// time; Timestamp is epoch milliseconds.
type Route struct {
	ID             string         `json:"id"`
	Origin         string         `json:"origin"`
	Destination    string         `json:"destination"`
	Distance       string         `json:"distance"`       // formatted, e.g. "120 km"
	EstimatedPrice string         `json:"estimatedPrice"` // formatted currency
	VehicleType    string         `json:"vehicleType"`
	Driver         string         `json:"driver,omitempty"`
	Vehicle        string         `json:"vehicle,omitempty"` // plate
	Timestamp      int64          `json:"timestamp"`
	Status         RouteStatus    `json:"status"`
	Proof          *DeliveryProof `json:"proof,omitempty"`
}

// DeliveryProof is recorded when a route is finished with a signature.
// A proof implies Completed; a Completed route may lack a proof.
type DeliveryProof struct {
	Signature     string `json:"signature"` // data-URL encoded PNG
	RecipientName string `json:"recipientName,omitempty"`
	RecipientRUT  string `json:"recipientRut,omitempty"`
	DeliveredAt   int64  `json:"deliveredAt"`
	Notes         string `json:"notes,omitempty"`
}

type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "Active"
	VehicleMaintenance VehicleStatus = "Maintenance"
	VehicleIdle        VehicleStatus = "Idle"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VehicleDocument is an attached compliance file (permit, insurance, ...).
type VehicleDocument struct {
	Type     string `json:"type"`
	Expiry   string `json:"expiry"` // date string
	File     string `json:"file"`   // base64 payload
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

type Vehicle struct {
	ID          string            `json:"id"`
	Plate       string            `json:"plate"`
	Model       string            `json:"model"`
	Status      VehicleStatus     `json:"status"`
	Mileage     int               `json:"mileage"`
	FuelLevel   int               `json:"fuelLevel"` // 0-100
	NextService string            `json:"nextService"`
	Location    *LatLng           `json:"location,omitempty"`
	Documents   []VehicleDocument `json:"documents,omitempty"`
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "Available"
	DriverOnRoute   DriverStatus = "On Route"
	DriverOffDuty   DriverStatus = "Off Duty"
)

type Driver struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	RUT           string       `json:"rut"`
	LicenseType   string       `json:"licenseType"`
	LicenseExpiry string       `json:"licenseExpiry"`
	Status        DriverStatus `json:"status"`
}

// GPSPing is one telemetry sample on an active route.
type GPSPing struct {
	ID        string  `json:"id"`
	RouteID   string  `json:"routeId"`
	VehicleID string  `json:"vehicleId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Speed     float64 `json:"speed"`
	EngineOn  bool    `json:"engineOn"`
	Timestamp int64   `json:"timestamp"`
}

// View selects which screen the client renders.
type View string

const (
	ViewHome         View = "HOME"
	ViewDashboard    View = "DASHBOARD"
	ViewTracking     View = "TRACKING"
	ViewFleet        View = "FLEET"
	ViewRoutes       View = "ROUTES"
	ViewRouteBuilder View = "ROUTE_BUILDER"
	ViewFinancials   View = "FINANCIALS"
	ViewCompliance   View = "COMPLIANCE"
	ViewDriverMobile View = "DRIVER_MOBILE"
)

// RouteDraft carries a quote-builder draft to the registration screen.
// It lives only in memory; it is never synced or persisted.
type RouteDraft struct {
	Origin       string
	Destination  string
	Distance     string
	CargoDetails string
	Price        string
	VehicleType  string
}
