package model

import (
	"time"

	"mobilemoney-subscription/internal/domain"
)

type PlanID string

const (
	PlanFree    PlanID = "free"
	PlanMonthly PlanID = "monthly"
	PlanYearly  PlanID = "yearly"
)

// Plan describes a purchasable subscription tier.
type Plan struct {
	ID       PlanID
	Name     string
	PriceXAF int64 // minor units
}

// DefaultPlans is the built-in catalog. Paid plans only are purchasable.
var DefaultPlans = map[PlanID]Plan{
	PlanFree:    {ID: PlanFree, Name: "Free"},
	PlanMonthly: {ID: PlanMonthly, Name: "Monthly", PriceXAF: 4150},
	PlanYearly:  {ID: PlanYearly, Name: "Yearly", PriceXAF: 41500},
}

// ParsePlan validates a plan identifier coming from a client request.
func ParsePlan(s string) (PlanID, error) {
	p := PlanID(s)
	if _, ok := DefaultPlans[p]; !ok {
		return "", domain.ErrUnknownPlan
	}
	return p, nil
}

// ComputeExpiry returns the deterministic expiry of a plan activated at ts.
// Monthly adds one calendar month, yearly one calendar year. Re-activation is
// always computed from the new activation time; durations never stack.
func ComputeExpiry(plan PlanID, ts time.Time) (time.Time, error) {
	switch plan {
	case PlanMonthly:
		return ts.AddDate(0, 1, 0), nil
	case PlanYearly:
		return ts.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, domain.ErrUnknownPlan
	}
}
