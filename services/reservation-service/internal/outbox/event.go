package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateReservation = "reservation"
	AggregateImportBatch = "reservation_import"

	ReservationCreated     = "reservation.created.v1"
	ReservationRescheduled = "reservation.rescheduled.v1"
	ReservationCancelled   = "reservation.cancelled.v1"
	ImportCompleted        = "reservation.import.completed.v1"
)
