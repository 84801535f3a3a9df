package pipeline

import (
	"context"
	"time"

	"caseflow/internal/broker"
	"caseflow/internal/envelope"
	"caseflow/internal/ledger"
	"caseflow/internal/logger"
	"caseflow/internal/orchestrator"
	"caseflow/internal/router"
	"caseflow/pkg/logging"
	"caseflow/pkg/metrics"
	"caseflow/pkg/retry"
)

const (
	actionExceptionRecord = "EXCEPTION_RECORD"
	actionAutoAttached    = "AUTO_ATTACHED_TO_CASE"
)

// Ledger is the outcome ledger surface the processor depends on.
type Ledger interface {
	FindCompleted(ctx context.Context, requestType ledger.RequestType, exceptionRecordID string) (string, bool, error)
	Record(ctx context.Context, requestType ledger.RequestType, exceptionRecordID, caseID string) (string, error)
}

// Orchestrator executes a routing strategy for one envelope.
type Orchestrator interface {
	Execute(ctx context.Context, strategy router.Strategy, env *envelope.Envelope) (*orchestrator.Outcome, error)
}

// PaymentNotifier forwards payment commands after a completed action.
type PaymentNotifier interface {
	PaymentsCreated(ctx context.Context, env *envelope.Envelope, caseID string, exceptionRecord bool)
}

// processedNotification tells the upstream scanning pipeline that an
// envelope reached a terminal successful state and can be finalised.
type processedNotification struct {
	EnvelopeID string `json:"envelope_id"`
	CaseID     string `json:"case_id"`
	CaseAction string `json:"envelope_case_action"`
}

// Processor drives one envelope delivery through decode, routing,
// orchestration and ledger recording. It is the broker handler for the
// envelopes topic.
type Processor struct {
	orchestrator   Orchestrator
	ledger         Ledger
	payments       PaymentNotifier
	producer       broker.Producer
	processedTopic string
	logger         logger.Logger
}

func NewProcessor(
	orch Orchestrator,
	outcomes Ledger,
	paymentNotifier PaymentNotifier,
	producer broker.Producer,
	processedTopic string,
	log logger.Logger,
) *Processor {
	return &Processor{
		orchestrator:   orch,
		ledger:         outcomes,
		payments:       paymentNotifier,
		producer:       producer,
		processedTopic: processedTopic,
		logger:         log,
	}
}

// Handle processes one delivery. A nil return acknowledges the message;
// a fatal error skips remaining redeliveries; any other error leaves the
// message for redelivery.
func (p *Processor) Handle(ctx context.Context, delivery broker.Delivery) error {
	start := time.Now()
	ctx = logging.WithMessageID(ctx, delivery.MessageID)

	result := p.process(ctx, delivery)

	metrics.EnvelopesProcessedTotal.WithLabelValues(result.Type.String()).Inc()
	metrics.ObserveProcessingDuration(time.Since(start), result.Type.String())

	switch result.Type {
	case Success:
		return nil
	case UnrecoverableFailure:
		p.logger.ErrorwCtx(ctx, "Envelope failed permanently",
			"error", result.Cause,
			"attempt", delivery.Attempt,
		)
		return retry.NewFatalError(result.Cause)
	default:
		p.logger.WarnwCtx(ctx, "Envelope processing failed, eligible for redelivery",
			"error", result.Cause,
			"attempt", delivery.Attempt,
		)
		return retry.NewRetryableError(result.Cause)
	}
}

func (p *Processor) process(ctx context.Context, delivery broker.Delivery) Result {
	var env *envelope.Envelope
	var strategy router.Strategy
	var outcome *orchestrator.Outcome

	decode := func() Result {
		decoded, err := envelope.Decode(delivery.Body)
		if err != nil {
			return Unrecoverable(err)
		}
		env = decoded
		ctx = logging.WithEnvelopeID(ctx, env.ID)
		p.logger.InfowCtx(ctx, "Decoded envelope",
			"jurisdiction", env.Jurisdiction,
			"classification", string(env.Classification),
			"documents", len(env.Documents),
		)
		return Succeeded()
	}

	route := func() Result {
		strategy = router.Select(env.Classification)
		if !env.Classification.Known() {
			metrics.UnknownClassificationsTotal.Inc()
			p.logger.WarnwCtx(ctx, "Unknown classification, routing to exception record",
				"classification", string(env.Classification),
			)
		}
		return Succeeded()
	}

	orchestrate := func() Result {
		requestType := requestTypeFor(strategy)

		caseID, done, err := p.ledger.FindCompleted(ctx, requestType, env.ID)
		if err != nil {
			return Recoverable(err)
		}
		if done {
			p.logger.InfowCtx(ctx, "Envelope already processed, skipping",
				"case_id", caseID,
				"request_type", string(requestType),
			)
			if err := p.notifyProcessed(ctx, env, caseID, requestType == ledger.RequestTypeCreateCase); err != nil {
				return Recoverable(err)
			}
			return Succeeded()
		}

		out, err := p.orchestrator.Execute(ctx, strategy, env)
		if err != nil {
			return Classify(err)
		}
		outcome = out

		if _, err := p.ledger.Record(ctx, out.RequestType, env.ID, out.CaseID); err != nil {
			// The case action itself completed. On redelivery the orchestrator
			// finds the existing record in the case system and reuses it, so
			// retrying here cannot duplicate the case.
			return Recoverable(err)
		}
		return Succeeded()
	}

	finalise := func() Result {
		if outcome == nil {
			return Succeeded()
		}
		for _, warning := range outcome.Warnings {
			p.logger.WarnwCtx(ctx, "Case update warning", "warning", warning)
		}
		// Payments go out before the processed notification. A redelivery
		// after a failed notification resumes from the ledger hit, which
		// never reaches this point, so anything published after the
		// notification would be lost with it.
		p.payments.PaymentsCreated(ctx, env, outcome.CaseID, outcome.ExceptionRecord)
		if err := p.notifyProcessed(ctx, env, outcome.CaseID, outcome.ExceptionRecord); err != nil {
			return Recoverable(err)
		}
		return Succeeded()
	}

	return decode().
		Then(route).
		Then(orchestrate).
		Then(finalise)
}

// notifyProcessed publishes the finalisation signal. A failed publish is
// surfaced so the delivery retries; the ledger makes the retry cheap.
func (p *Processor) notifyProcessed(ctx context.Context, env *envelope.Envelope, caseID string, exceptionRecord bool) error {
	action := actionAutoAttached
	if exceptionRecord {
		action = actionExceptionRecord
	}

	notification := processedNotification{
		EnvelopeID: env.ID,
		CaseID:     caseID,
		CaseAction: action,
	}

	if err := p.producer.Publish(ctx, p.processedTopic, env.ID, notification); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to publish processed envelope notification", "error", err)
		return err
	}

	p.logger.InfowCtx(ctx, "Envelope processed",
		"case_id", caseID,
		"case_action", action,
	)
	return nil
}

func requestTypeFor(strategy router.Strategy) ledger.RequestType {
	if strategy == router.StrategyCreateException {
		return ledger.RequestTypeCreateCase
	}
	return ledger.RequestTypeAttachToCase
}
