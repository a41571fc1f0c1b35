package models

import "time"

// Coordinates is a GPS fix in decimal degrees.
type Coordinates struct {
	Latitude  float64  `json:"latitude"`            // [-90, 90]
	Longitude float64  `json:"longitude"`           // [-180, 180]
	Accuracy  *float64 `json:"accuracy,omitempty"`  // radial uncertainty in meters, nil if unknown
}

// Platform identifies the client runtime that produced a GPS fix.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// Role is the access level of a user.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleWorker     Role = "worker"
	RoleUser       Role = "user"
)

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the user may act on jobs they are not assigned to.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin || u.Role == RoleSuperAdmin }

// AcceptanceLog is the immutable audit record of one job acceptance.
// Entries are only ever appended to a job's ordered list, never mutated
// or removed.
type AcceptanceLog struct {
	ID          string      `json:"id"`
	AcceptedAt  time.Time   `json:"accepted_at"`
	AcceptedBy  *User       `json:"accepted_by,omitempty"` // nil when identity unavailable
	Coordinates Coordinates `json:"coordinates"`
	Platform    Platform    `json:"platform"`
}

// Status is the job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Location is a customer-facing place: coordinates plus an optional
// street address for display.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// ServiceRequest is a unit of dispatched roadside work.
type ServiceRequest struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CustomerName    string    `json:"customer_name"`
	ServiceType     string    `json:"service_type"`
	Status          Status    `json:"status"`
	AssignedStaff   []string  `json:"assigned_staff"`
	Location        Location  `json:"location"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Assigned reports whether the given user id is in the assignment set.
func (r *ServiceRequest) Assigned(userID string) bool {
	for _, id := range r.AssignedStaff {
		if id == userID {
			return true
		}
	}
	return false
}

// Notification is one fan-out message emitted by a job mutation for the
// caller to dispatch. The core never performs notification I/O itself.
type Notification struct {
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RelatedID string `json:"related_id"`
}

// MileageEntry is the read-only reporting projection of one job joined
// with its full acceptance history.
type MileageEntry struct {
	RequestID       string          `json:"request_id"`
	RequestTitle    string          `json:"request_title"`
	CustomerName    string          `json:"customer_name"`
	ServiceType     string          `json:"service_type"`
	RequestLocation Location        `json:"request_location"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	AcceptanceLogs  []AcceptanceLog `json:"acceptance_logs"`
	DistanceKm      float64         `json:"distance_km"`
	DistanceMi      float64         `json:"distance_mi"`
	EtaSeconds      float64         `json:"eta_seconds,omitempty"`
}

// Latest returns the most recent acceptance entry, or nil when the job
// has never been accepted. Lists are append-ordered so the last element
// is the representative fix for date/distance comparisons.
func (e *MileageEntry) Latest() *AcceptanceLog {
	if len(e.AcceptanceLogs) == 0 {
		return nil
	}
	return &e.AcceptanceLogs[len(e.AcceptanceLogs)-1]
}
