package compliance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLASSIFICATION - terminal verdict of a compliance result
// =============================================================================

type Classification string

const (
	ClassOK          Classification = "ok"
	ClassUnderpaid   Classification = "underpaid"
	ClassNeedsReview Classification = "needs_review"
)

// RouterConfig holds the routing thresholds.
type RouterConfig struct {
	// AutoAccept is the confidence at or above which a verdict is final.
	AutoAccept decimal.Decimal
	// UnderpaymentThreshold is the shortfall, in dollars, above which an
	// employee is underpaid. Smaller shortfalls are trivial.
	UnderpaymentThreshold decimal.Decimal
	// ReviewOverpayments routes overpaid employees to review when confidence
	// is below OverpaymentConfidence.
	ReviewOverpayments    bool
	OverpaymentConfidence decimal.Decimal
	// Tolerance is the difference treated as zero, in dollars.
	Tolerance decimal.Decimal
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AutoAccept:            MustDecimal("0.70"),
		UnderpaymentThreshold: MustDecimal("1.00"),
		ReviewOverpayments:    false,
		OverpaymentConfidence: MustDecimal("0.85"),
		Tolerance:             MustDecimal("0.01"),
	}
}

// RouteInput is everything the router looks at.
type RouteInput struct {
	Lines                   PayLines
	Confidence              decimal.Decimal
	Gaps                    int
	UnmatchedClassification bool
}

// Route classifies a result. Review conditions win over amounts: a low
// confidence shortfall is needs_review, never underpaid. Reasons explain
// the verdict in evaluation order.
func Route(in RouteInput, cfg RouterConfig) (Classification, []string) {
	var reasons []string
	if in.Confidence.LessThan(cfg.AutoAccept) {
		reasons = append(reasons, fmt.Sprintf("confidence %s below auto-accept %s", in.Confidence.StringFixed(2), cfg.AutoAccept.StringFixed(2)))
	}
	if in.Gaps > 0 {
		reasons = append(reasons, fmt.Sprintf("%d shift segment(s) not covered by award rules", in.Gaps))
	}
	if in.UnmatchedClassification {
		reasons = append(reasons, "classification not found in award")
	}
	over := in.Lines.Overpayment()
	if cfg.ReviewOverpayments && over.GreaterThan(cfg.Tolerance) && in.Confidence.LessThan(cfg.OverpaymentConfidence) {
		reasons = append(reasons, fmt.Sprintf("overpayment %s with confidence %s below %s",
			over.StringFixed(Cents), in.Confidence.StringFixed(2), cfg.OverpaymentConfidence.StringFixed(2)))
	}
	if len(reasons) > 0 {
		return ClassNeedsReview, reasons
	}

	shortfall := in.Lines.Shortfall()
	if shortfall.GreaterThan(cfg.UnderpaymentThreshold) {
		return ClassUnderpaid, []string{fmt.Sprintf("shortfall %s exceeds threshold %s",
			shortfall.StringFixed(Cents), cfg.UnderpaymentThreshold.StringFixed(Cents))}
	}
	if shortfall.GreaterThan(cfg.Tolerance) {
		return ClassOK, []string{fmt.Sprintf("shortfall %s within threshold %s",
			shortfall.StringFixed(Cents), cfg.UnderpaymentThreshold.StringFixed(Cents))}
	}
	return ClassOK, []string{"paid in full"}
}
