// Package entitlement decides whether an export may proceed for an account.
//
// Evaluate is pure: it performs no I/O and never mutates its input. It is the
// only place where "an active subscription beats the credit balance" and the
// zero floor on credits are encoded; every caller that needs an export
// decision goes through it.
package entitlement

import "adstudio-backend-go/internal/models"

// Unlimited is reported as the remaining balance when an active subscription
// allows the export.
const Unlimited int64 = -1

// Mutation is the balance change that must be committed for an allowed decision
// to stand.
type Mutation int

const (
	// MutationNone means the decision does not touch the stored balance.
	MutationNone Mutation = iota
	// MutationDecrement means exactly one credit must be consumed.
	MutationDecrement
)

func (m Mutation) String() string {
	switch m {
	case MutationDecrement:
		return "decrement"
	default:
		return "none"
	}
}

// Reason explains a denial. Empty for allowed decisions.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonAccountNotFound Reason = "account not found"
	ReasonNoCredits       Reason = "no credits remaining"
)

// Decision is the outcome of evaluating an account.
type Decision struct {
	Allowed      bool
	CreditsAfter int64
	Mutation     Mutation
	Reason       Reason
}

// Evaluate computes the export decision for acct. A nil account is denied.
func Evaluate(acct *models.Account) Decision {
	if acct == nil {
		return Decision{Allowed: false, Mutation: MutationNone, Reason: ReasonAccountNotFound}
	}
	if acct.SubscriptionActive {
		return Decision{Allowed: true, CreditsAfter: Unlimited, Mutation: MutationNone}
	}
	if acct.Credits > 0 {
		return Decision{Allowed: true, CreditsAfter: acct.Credits - 1, Mutation: MutationDecrement}
	}
	return Decision{Allowed: false, CreditsAfter: 0, Mutation: MutationNone, Reason: ReasonNoCredits}
}
