package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rating recompute triggers.
const (
	TriggerReviewCreated = "review_created"
	TriggerReviewUpdated = "review_updated"
	TriggerReviewDeleted = "review_deleted"
)

// Domain holds the marketplace business counters. A nil *Domain records
// nothing, which keeps service tests free of registry plumbing.
type Domain struct {
	approvalDecisions *prometheus.CounterVec
	approvalResets    prometheus.Counter
	ratingRecomputes  *prometheus.CounterVec
}

// NewDomain registers the domain counters with reg.
func NewDomain(reg prometheus.Registerer) *Domain {
	factory := promauto.With(reg)

	return &Domain{
		approvalDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_approval_decisions_total",
				Help: "Admin approval decisions by outcome.",
			},
			[]string{"decision"},
		),
		approvalResets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "marketplace_approval_resets_total",
				Help: "Product edits that sent a product back to pending.",
			},
		),
		ratingRecomputes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_rating_recomputes_total",
				Help: "Rating summary recomputations by triggering review write.",
			},
			[]string{"trigger"},
		),
	}
}

// ApprovalDecision counts an approve or reject decision.
func (d *Domain) ApprovalDecision(decision string) {
	if d == nil {
		return
	}
	d.approvalDecisions.WithLabelValues(decision).Inc()
}

// ApprovalReset counts an edit that reset approval to pending.
func (d *Domain) ApprovalReset() {
	if d == nil {
		return
	}
	d.approvalResets.Inc()
}

// RatingRecomputed counts a rating summary recomputation.
func (d *Domain) RatingRecomputed(trigger string) {
	if d == nil {
		return
	}
	d.ratingRecomputes.WithLabelValues(trigger).Inc()
}
