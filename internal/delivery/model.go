package delivery

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusPickedUp,
		StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Live reports whether the assignment still occupies its order's single
// slot. Only rejected and cancelled assignments free it.
func (s Status) Live() bool {
	return s != StatusRejected && s != StatusCancelled
}

// Terminal states accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusRejected || s == StatusCancelled
}

// Deliverable states may move straight to delivered.
func (s Status) Deliverable() bool {
	return s == StatusAccepted || s == StatusPickedUp || s == StatusInTransit
}

var progressions = map[Status]Status{
	StatusAccepted: StatusPickedUp,
	StatusPickedUp: StatusInTransit,
}

// CanProgress reports whether a rider may move from -> to through UpdateStatus.
func CanProgress(from, to Status) bool {
	if to == StatusDelivered {
		return from.Deliverable()
	}
	next, ok := progressions[from]
	return ok && next == to
}

type Assignment struct {
	ID                int64      `json:"-"`
	PublicID          string     `json:"assignment_id"`
	OrderID           int64      `json:"-"`
	RiderID           int64      `json:"rider_id"`
	Status            Status     `json:"status"`
	AssignedAt        time.Time  `json:"assigned_at"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	RejectedAt        *time.Time `json:"rejected_at,omitempty"`
	RejectionReason   *string    `json:"rejection_reason,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
	Notes             string     `json:"notes"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Rider struct {
	ID              int64    `json:"id"`
	UserID          int64    `json:"-"`
	Name            string   `json:"name"`
	VehicleType     string   `json:"vehicle_type"`
	VehicleNumber   string   `json:"vehicle_number"`
	DeliveryZones   []string `json:"delivery_zones"`
	IsActive        bool     `json:"is_active"`
	TotalDeliveries int      `json:"total_deliveries"`
}

type AssignInput struct {
	OrderID           int64
	RiderID           int64
	EstimatedDelivery *time.Time
	Notes             string
}
