package deadletter

import "time"

// Record is one dead-lettered message in the holding store, kept with
// full failure context until the retention sweep discards it.
type Record struct {
	ID             string    `bson:"_id"`
	MessageID      string    `bson:"message_id"`
	Queue          string    `bson:"queue"`
	Reason         string    `bson:"reason"`
	Description    string    `bson:"description"`
	DeliveryCount  int       `bson:"delivery_count"`
	Body           []byte    `bson:"body"`
	DeadLetteredAt time.Time `bson:"dead_lettered_at"`
}

// TelemetryEvent is emitted for every dead-lettered message; downstream
// alerting keys on it.
type TelemetryEvent struct {
	Event         string    `json:"event"`
	Reason        string    `json:"reason"`
	Description   string    `json:"description"`
	MessageID     string    `json:"message_id"`
	Queue         string    `json:"queue"`
	DeliveryCount int       `json:"delivery_count"`
	Timestamp     time.Time `json:"timestamp"`
}
