package router

import (
	"caseflow/internal/envelope"
)

// Strategy identifies how an envelope is turned into a case-management
// action. It is a closed variant; every envelope maps to exactly one.
type Strategy int

const (
	// StrategyCreateException creates a new exception record holding the
	// scanned material for later human or automatic classification.
	StrategyCreateException Strategy = iota
	// StrategyAttachToCase attaches the envelope's documents to the case
	// referenced by the envelope.
	StrategyAttachToCase
	// StrategySupplementaryEvidence records additional evidence against an
	// existing case.
	StrategySupplementaryEvidence
)

func (s Strategy) String() string {
	switch s {
	case StrategyCreateException:
		return "CREATE_EXCEPTION"
	case StrategyAttachToCase:
		return "ATTACH_TO_CASE"
	case StrategySupplementaryEvidence:
		return "SUPPLEMENTARY_EVIDENCE"
	default:
		return "UNKNOWN"
	}
}

// Select maps a classification to its strategy. It is pure and total:
// unrecognised classifications fall back to creating an exception record,
// which parks the material for human triage instead of losing it. Callers
// detect the fallback with Classification.Known and log it.
func Select(c envelope.Classification) Strategy {
	switch c.Normalise() {
	case envelope.ClassificationSupplementaryEvidence:
		return StrategySupplementaryEvidence
	case envelope.ClassificationException:
		return StrategyCreateException
	case envelope.ClassificationNewApplication:
		return StrategyCreateException
	default:
		return StrategyCreateException
	}
}
