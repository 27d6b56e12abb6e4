package account

import (
	"maps"
	"time"

	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// SubscriptionStatus represents the current billing state of an account.
type SubscriptionStatus string

const (
	StatusInactive  SubscriptionStatus = "inactive"
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Quota is a per-resource counter pair. Used is reset only by an explicit plan
// transition, never by ordinary reads.
type Quota struct {
	Used  int64 `bson:"used" json:"used"`
	Limit int64 `bson:"limit" json:"limit"`
}

// Remaining returns how many consumptions are left.
func (q Quota) Remaining() int64 {
	return max(0, q.Limit-q.Used)
}

// Account is the per-user billing and quota record. The ID is issued by the
// external auth provider. Version backs the store's optimistic concurrency
// control and is never exposed to clients.
type Account struct {
	ID                     string                  `bson:"_id" json:"id"`
	Email                  string                  `bson:"email" json:"email"`
	Plan                   plan.Tier               `bson:"plan" json:"plan"`
	SubscriptionStatus     SubscriptionStatus      `bson:"subscriptionStatus" json:"subscriptionStatus"`
	BillingCustomerRef     string                  `bson:"billingCustomerRef,omitempty" json:"-"`
	BillingSubscriptionRef string                  `bson:"billingSubscriptionRef,omitempty" json:"-"`
	PriceRef               string                  `bson:"priceRef,omitempty" json:"-"`
	Quotas                 map[plan.QuotaKey]Quota `bson:"quotas" json:"quotas"`
	GenerationsPerDocument int64                   `bson:"generationsPerDocument" json:"generationsPerDocument"`
	LastGenerationAt       *time.Time              `bson:"lastGenerationAt,omitempty" json:"-"`
	CreatedAt              time.Time               `bson:"createdAt" json:"createdAt"`
	UpdatedAt              time.Time               `bson:"updatedAt" json:"-"`
	Version                int64                   `bson:"version" json:"-"`
}

// New provisions an account with free-tier defaults. This is the single hook
// invoked when the auth provider reports a first sign-in.
func New(id, email string, free plan.Plan) *Account {
	now := time.Now().UTC()
	a := &Account{
		ID:                 id,
		Email:              email,
		Plan:               plan.TierFree,
		SubscriptionStatus: StatusInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	a.ApplyPlan(free)
	return a
}

// ApplyPlan overwrites the account's quota counters and limits from the given
// plan. It is a full deterministic overwrite, not a merge: both the webhook
// and the session-verify path funnel through it, which is what makes re-applying
// the same transition a no-op.
func (a *Account) ApplyPlan(p plan.Plan) {
	a.Plan = p.Tier
	a.GenerationsPerDocument = p.GenerationsPerDocument
	a.Quotas = make(map[plan.QuotaKey]Quota, len(p.UploadLimits))
	for key, limit := range p.UploadLimits {
		a.Quotas[key] = Quota{Used: 0, Limit: limit}
	}
}

// IsPro reports whether the account is on the paid tier.
func (a *Account) IsPro() bool {
	return a.Plan == plan.TierPro
}

// Clone returns a deep copy. Stores hand out clones so callers can't mutate
// shared state outside a transactional Update.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Quotas = maps.Clone(a.Quotas)
	if a.LastGenerationAt != nil {
		ts := *a.LastGenerationAt
		cp.LastGenerationAt = &ts
	}
	return &cp
}
