// Package missions gates and executes mission assignment for a responder.
package missions

import (
	"fmt"

	"github.com/idro/idro/internal/models"
)

// ConfirmationThreshold is the lowest trust score that proceeds without an
// explicit operator confirmation.
const ConfirmationThreshold = 50

// TrustDecision is the outcome of the trust gate.
type TrustDecision string

const (
	Proceed             TrustDecision = "PROCEED"
	RequireConfirmation TrustDecision = "REQUIRE_CONFIRMATION"
)

func (d TrustDecision) String() string {
	return string(d)
}

// EvaluateTrust decides whether assigning a mission with the given trust
// score needs confirmation. A missing score resolves to the default.
func EvaluateTrust(score *int) TrustDecision {
	if models.ResolveTrustScore(score) < ConfirmationThreshold {
		return RequireConfirmation
	}
	return Proceed
}

// ConfirmationPrompt is the warning shown before deploying to a low-trust
// report. It always discloses the resolved score.
func ConfirmationPrompt(score *int) string {
	return fmt.Sprintf("WARNING: LOW TRUST ALERT (%d%%)\n\n"+
		"This report is unverified. Are you sure you want to deploy resources?\n"+
		"It is recommended to send a Scout Unit first.",
		models.ResolveTrustScore(score))
}
