package payments

import (
	"context"
	"time"

	"caseflow/internal/broker"
	"caseflow/internal/envelope"
	"caseflow/internal/logger"
	"caseflow/pkg/metrics"
)

const (
	commandCreate = "CREATE"
	commandUpdate = "UPDATE"
)

// CreateCommand asks the payment processor to register the payments that
// arrived with an envelope against the case they now belong to.
type CreateCommand struct {
	Command                string    `json:"command"`
	EnvelopeID             string    `json:"envelope_id"`
	CaseID                 string    `json:"case_id"`
	Jurisdiction           string    `json:"jurisdiction"`
	PoBox                  string    `json:"po_box"`
	ExceptionRecord        bool      `json:"is_exception_record"`
	DocumentControlNumbers []string  `json:"document_control_numbers"`
	CreatedAt              time.Time `json:"created_at"`
}

// UpdateCommand re-points payments from an exception record to the case
// that was eventually created from it.
type UpdateCommand struct {
	Command           string    `json:"command"`
	EnvelopeID        string    `json:"envelope_id"`
	Jurisdiction      string    `json:"jurisdiction"`
	ExceptionRecordID string    `json:"exception_record_id"`
	NewCaseID         string    `json:"new_case_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// Notifier publishes payment commands. Delivery is fire and forget: a
// failed publish is logged and counted but never fails the envelope.
type Notifier struct {
	producer broker.Producer
	topic    string
	logger   logger.Logger
	now      func() time.Time
}

func NewNotifier(producer broker.Producer, topic string, log logger.Logger) *Notifier {
	return &Notifier{
		producer: producer,
		topic:    topic,
		logger:   log,
		now:      time.Now,
	}
}

func (n *Notifier) PaymentsCreated(ctx context.Context, env *envelope.Envelope, caseID string, exceptionRecord bool) {
	if !env.HasPayments() {
		return
	}

	dcns := make([]string, len(env.Payments))
	for i, p := range env.Payments {
		dcns[i] = p.DocumentControlNumber
	}

	cmd := CreateCommand{
		Command:                commandCreate,
		EnvelopeID:             env.ID,
		CaseID:                 caseID,
		Jurisdiction:           env.Jurisdiction,
		PoBox:                  env.PoBox,
		ExceptionRecord:        exceptionRecord,
		DocumentControlNumbers: dcns,
		CreatedAt:              n.now().UTC(),
	}

	n.publish(ctx, commandCreate, env.ID, cmd)
}

func (n *Notifier) PaymentsReassigned(ctx context.Context, env *envelope.Envelope, exceptionRecordID, newCaseID string) {
	cmd := UpdateCommand{
		Command:           commandUpdate,
		EnvelopeID:        env.ID,
		Jurisdiction:      env.Jurisdiction,
		ExceptionRecordID: exceptionRecordID,
		NewCaseID:         newCaseID,
		CreatedAt:         n.now().UTC(),
	}

	n.publish(ctx, commandUpdate, env.ID, cmd)
}

func (n *Notifier) publish(ctx context.Context, command, key string, cmd interface{}) {
	if err := n.producer.Publish(ctx, n.topic, key, cmd); err != nil {
		metrics.PaymentCommandsTotal.WithLabelValues(command, "error").Inc()
		n.logger.ErrorwCtx(ctx, "Failed to publish payment command",
			"command", command,
			"error", err,
		)
		return
	}

	metrics.PaymentCommandsTotal.WithLabelValues(command, "success").Inc()
	n.logger.InfowCtx(ctx, "Payment command published", "command", command)
}
