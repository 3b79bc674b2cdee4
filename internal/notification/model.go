package notification

import "time"

type Kind string

const (
	KindShipped   Kind = "shipped"
	KindDelivered Kind = "delivered"
)

// Message carries everything a template needs. It is built from committed
// state only.
type Message struct {
	Kind          Kind
	To            string
	CustomerName  string
	OrderPublicID string

	Courier           string
	TrackingID        string
	EstimatedDelivery *time.Time

	DeliveredAt *time.Time
	RiderName   string
}

// Email is a rendered message ready for a Sender.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
