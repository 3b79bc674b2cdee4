package order

type Event string

const (
	EventAdminApprove     Event = "admin_approve"
	EventPaymentValidated Event = "payment_validated"
	EventCustomerCancel   Event = "customer_cancel"
	EventPaymentFailed    Event = "payment_failed"
	EventSystemCancel     Event = "system_cancel"
	EventAdminShip        Event = "admin_ship"
	EventAdminCancel      Event = "admin_cancel"
	EventRiderDelivered   Event = "rider_delivered"
)

var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventAdminApprove:     StatusApproved,
		EventPaymentValidated: StatusApproved,
		EventCustomerCancel:   StatusCancelled,
		EventPaymentFailed:    StatusCancelled,
		EventSystemCancel:     StatusCancelled,
		EventAdminCancel:      StatusCancelled,
	},
	StatusApproved: {
		EventAdminShip:   StatusShipped,
		EventAdminCancel: StatusCancelled,
	},
	StatusShipped: {
		EventRiderDelivered: StatusDelivered,
		EventAdminCancel:    StatusCancelled,
	},
}

// Transition is the order state graph. Every pair not listed is illegal,
// including everything out of delivered and cancelled.
func Transition(from Status, ev Event) (Status, error) {
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return "", illegal(from, ev)
}

func cancelEvent(actor ActorKind) Event {
	switch actor {
	case ActorAdmin:
		return EventAdminCancel
	case ActorCustomer:
		return EventCustomerCancel
	default:
		return EventSystemCancel
	}
}
