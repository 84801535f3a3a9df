package orchestrator

import (
	"context"

	"caseflow/internal/casemanagement"
	"caseflow/internal/credentials"
	"caseflow/internal/envelope"
	"caseflow/internal/ledger"
	"caseflow/internal/logger"
	"caseflow/internal/router"
	pkgerrors "caseflow/pkg/errors"
	"caseflow/pkg/metrics"
)

const (
	eventAttachScannedDocs        = "attachScannedDocs"
	eventAttachScannedDocsWithOcr = "attachScannedDocsWithOcr"
)

// CaseClient is the slice of the case-management client the orchestrator
// uses. Each method is a single network call.
type CaseClient interface {
	CreateCase(ctx context.Context, creds credentials.Credentials, req casemanagement.CreateCaseRequest) (string, error)
	GetCase(ctx context.Context, creds credentials.Credentials, caseRef string) (*casemanagement.CaseDetails, error)
	SearchByLegacyRef(ctx context.Context, creds credentials.Credentials, legacyRef, container string) ([]string, error)
	SearchByEnvelopeID(ctx context.Context, creds credentials.Credentials, envelopeID, container string) ([]string, error)
	UpdateCase(ctx context.Context, creds credentials.Credentials, caseID string, req casemanagement.UpdateCaseRequest) (*casemanagement.UpdateResult, error)
}

// CredentialSource resolves per-jurisdiction bearer material.
type CredentialSource interface {
	GetCredentials(ctx context.Context, jurisdiction string) (credentials.Credentials, error)
}

// HashClient fetches document hash tokens for payload enrichment.
type HashClient interface {
	GetDocumentHash(ctx context.Context, documentUUID string) (string, error)
}

// Outcome is the terminal state of one successfully orchestrated envelope.
type Outcome struct {
	CaseID          string
	RequestType     ledger.RequestType
	Warnings        []string
	ExceptionRecord bool
	// UpdateSkipped is set when every document in the envelope was already
	// attached to the target case, so no update call was issued.
	UpdateSkipped bool
}

// Service executes a routing strategy against the case-management system.
type Service struct {
	cases  CaseClient
	creds  CredentialSource
	hashes HashClient
	logger logger.Logger
}

func NewService(cases CaseClient, creds CredentialSource, hashes HashClient, log logger.Logger) *Service {
	return &Service{
		cases:  cases,
		creds:  creds,
		hashes: hashes,
		logger: log,
	}
}

// Execute performs the case action a strategy prescribes. Errors carry the
// failure taxonomy: not-found targets, rejected payloads and missing
// credentials are permanent, connectivity problems are transient.
func (s *Service) Execute(ctx context.Context, strategy router.Strategy, env *envelope.Envelope) (*Outcome, error) {
	creds, err := s.creds.GetCredentials(ctx, env.Jurisdiction)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case router.StrategyAttachToCase:
		return s.attach(ctx, creds, env, eventAttachScannedDocs, false)
	case router.StrategySupplementaryEvidence:
		return s.attach(ctx, creds, env, eventAttachScannedDocsWithOcr, true)
	default:
		return s.createExceptionRecord(ctx, creds, env)
	}
}

func (s *Service) createExceptionRecord(ctx context.Context, creds credentials.Credentials, env *envelope.Envelope) (*Outcome, error) {
	// A crash or ledger failure after a completed create leaves no local
	// trace, so the envelope id is checked against the case system itself
	// before creating. Redelivery then reuses the existing record instead
	// of creating a second one.
	existing, err := s.cases.SearchByEnvelopeID(ctx, creds, env.ID, env.Container)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		if len(existing) > 1 {
			s.logger.WarnwCtx(ctx, "Multiple exception records exist for envelope, reusing first",
				"case_ids", existing,
			)
		}
		s.logger.InfowCtx(ctx, "Exception record already exists for envelope, skipping create",
			"case_id", existing[0],
		)
		return &Outcome{
			CaseID:          existing[0],
			RequestType:     ledger.RequestTypeCreateCase,
			ExceptionRecord: true,
		}, nil
	}

	req := casemanagement.CreateCaseRequest{
		Jurisdiction:     env.Jurisdiction,
		PoBox:            env.PoBox,
		EnvelopeID:       env.ID,
		EnvelopeCaseRef:  env.CaseRef,
		FormType:         env.FormType,
		ZipFileName:      env.ZipFileName,
		DeliveryDate:     env.DeliveryDate,
		OpeningDate:      env.OpeningDate,
		ScannedDocuments: s.buildDocuments(ctx, env, nil),
		OcrData:          buildOcrData(env),
		OcrWarnings:      env.OcrWarnings,
		ContainsPayments: env.HasPayments(),
	}

	caseID, err := s.cases.CreateCase(ctx, creds, req)
	if err != nil {
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Created exception record",
		"case_id", caseID,
		"jurisdiction", env.Jurisdiction,
		"classification", string(env.Classification),
	)

	return &Outcome{
		CaseID:          caseID,
		RequestType:     ledger.RequestTypeCreateCase,
		ExceptionRecord: true,
	}, nil
}

func (s *Service) attach(ctx context.Context, creds credentials.Credentials, env *envelope.Envelope, eventID string, withOcr bool) (*Outcome, error) {
	target, err := s.findCase(ctx, creds, env)
	if err != nil {
		return nil, err
	}

	newDocs, duplicates := partitionDocuments(env.Documents, target.ScannedDocuments)

	if len(duplicates) > 0 {
		anomaly := "partial"
		if len(newDocs) == 0 {
			anomaly = "all"
		}
		metrics.DuplicateDocumentsTotal.WithLabelValues(anomaly).Add(float64(len(duplicates)))
		s.logger.WarnwCtx(ctx, "Envelope contains documents already attached to the case",
			"case_id", target.ID,
			"duplicate_uuids", duplicates,
			"new_documents", len(newDocs),
		)
	}

	if len(newDocs) == 0 {
		s.logger.InfowCtx(ctx, "Skipping case update, all documents already attached",
			"case_id", target.ID,
		)
		return &Outcome{
			CaseID:        target.ID,
			RequestType:   ledger.RequestTypeAttachToCase,
			UpdateSkipped: true,
		}, nil
	}

	req := casemanagement.UpdateCaseRequest{
		EventID:    eventID,
		EnvelopeID: env.ID,
		Documents:  s.buildDocuments(ctx, env, newDocs),
	}
	if withOcr {
		req.OcrData = buildOcrData(env)
		req.OcrWarnings = env.OcrWarnings
	}

	result, err := s.cases.UpdateCase(ctx, creds, target.ID, req)
	if err != nil {
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Attached documents to case",
		"case_id", result.CaseID,
		"event_id", eventID,
		"documents", len(newDocs),
	)

	return &Outcome{
		CaseID:      result.CaseID,
		RequestType: ledger.RequestTypeAttachToCase,
		Warnings:    result.Warnings,
	}, nil
}

// findCase resolves the envelope's target case. A direct case reference
// wins; otherwise the legacy reference is searched within the envelope's
// container, and anything but exactly one match is permanent.
func (s *Service) findCase(ctx context.Context, creds credentials.Credentials, env *envelope.Envelope) (*casemanagement.CaseDetails, error) {
	if env.CaseRef != "" {
		if !validCaseRef(env.CaseRef) {
			return nil, pkgerrors.ErrValidation.
				WithDetail("message", "invalid case reference format: "+env.CaseRef)
		}
		return s.cases.GetCase(ctx, creds, env.CaseRef)
	}

	if env.LegacyCaseRef == "" {
		return nil, pkgerrors.ErrValidation.
			WithDetail("message", "envelope has neither case reference nor legacy case reference")
	}

	ids, err := s.cases.SearchByLegacyRef(ctx, creds, env.LegacyCaseRef, env.Container)
	if err != nil {
		return nil, err
	}

	switch len(ids) {
	case 0:
		return nil, pkgerrors.ErrNotFound.
			WithDetail("message", "no case found for legacy reference "+env.LegacyCaseRef)
	case 1:
		return s.cases.GetCase(ctx, creds, ids[0])
	default:
		return nil, pkgerrors.ErrValidation.
			WithDetail("message", "multiple cases found for legacy reference "+env.LegacyCaseRef).
			WithDetail("case_ids", ids)
	}
}

// buildDocuments maps envelope documents to the case-management shape,
// enriching each with a hash token when the hash client is configured.
// docs nil means all of the envelope's documents.
func (s *Service) buildDocuments(ctx context.Context, env *envelope.Envelope, docs []envelope.Document) []casemanagement.ScannedDocument {
	if docs == nil {
		docs = env.Documents
	}

	out := make([]casemanagement.ScannedDocument, 0, len(docs))
	for _, doc := range docs {
		scanned := casemanagement.ScannedDocument{
			FileName:      doc.FileName,
			ControlNumber: doc.ControlNumber,
			Type:          doc.Type,
			Subtype:       doc.Subtype,
			ScannedAt:     doc.ScannedAt,
			DeliveryDate:  doc.DeliveryDate,
			DocumentUUID:  doc.UUID,
		}

		if s.hashes != nil {
			hash, err := s.hashes.GetDocumentHash(ctx, doc.UUID)
			if err != nil {
				s.logger.WarnwCtx(ctx, "Failed to fetch document hash, omitting",
					"document_uuid", doc.UUID,
					"error", err,
				)
			} else {
				scanned.HashToken = hash
			}
		}

		out = append(out, scanned)
	}

	return out
}

// buildOcrData preserves the envelope's field order.
func buildOcrData(env *envelope.Envelope) []casemanagement.OcrField {
	if len(env.OcrData) == 0 {
		return nil
	}

	fields := make([]casemanagement.OcrField, len(env.OcrData))
	for i, f := range env.OcrData {
		fields[i] = casemanagement.OcrField{Name: f.Name, Value: f.Value}
	}
	return fields
}

// partitionDocuments splits the envelope's documents into those not yet on
// the case and the uuids of those already attached. Relative order of the
// new documents is retained.
func partitionDocuments(docs []envelope.Document, existing []casemanagement.ScannedDocument) ([]envelope.Document, []string) {
	attached := make(map[string]struct{}, len(existing))
	for _, doc := range existing {
		attached[doc.DocumentUUID] = struct{}{}
	}

	var newDocs []envelope.Document
	var duplicates []string
	for _, doc := range docs {
		if _, ok := attached[doc.UUID]; ok {
			duplicates = append(duplicates, doc.UUID)
		} else {
			newDocs = append(newDocs, doc)
		}
	}

	return newDocs, duplicates
}

func validCaseRef(ref string) bool {
	if len(ref) != 16 {
		return false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
