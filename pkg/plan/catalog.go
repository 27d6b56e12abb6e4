package plan

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[Tier]Plan, error)
}

// Catalog holds the plan per tier. The map is treated as immutable after
// construction; thread-safety depends on this.
type Catalog struct {
	plans map[Tier]Plan
}

// NewCatalog builds a catalog from a source and validates it.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plan: Source is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// Default returns a catalog with the built-in free and pro plans.
func Default() *Catalog {
	return &Catalog{plans: defaultPlans()}
}

// ForTier returns the plan for a tier. Unknown tiers fall back to the free
// plan so a corrupted account record can never grant elevated limits.
func (c *Catalog) ForTier(t Tier) Plan {
	if p, ok := c.plans[t]; ok {
		return p
	}
	return c.plans[TierFree]
}

// ByPriceRef resolves a plan by its provider price reference.
func (c *Catalog) ByPriceRef(ref string) (Plan, bool) {
	if ref == "" {
		return Plan{}, false
	}
	for _, p := range c.plans {
		if p.PriceRef == ref {
			return p, true
		}
	}
	return Plan{}, false
}

func defaultPlans() map[Tier]Plan {
	return map[Tier]Plan{
		TierFree: {
			Tier: TierFree,
			Name: "Free Plan",
			UploadLimits: map[QuotaKey]int64{
				QuotaPDFUploads:     2,
				QuotaWebsiteUploads: 1,
			},
			GenerationsPerDocument: 1,
			Cooldown:               3 * time.Second,
		},
		TierPro: {
			Tier:     TierPro,
			Name:     "Pro Plan",
			PriceRef: "price_pro",
			UploadLimits: map[QuotaKey]int64{
				QuotaPDFUploads:     80,
				QuotaWebsiteUploads: 50,
			},
			GenerationsPerDocument: 3,
			Cooldown:               2 * time.Second,
		},
	}
}

// validatePlans ensures plan configurations are internally consistent.
func validatePlans(plans map[Tier]Plan) error {
	if _, ok := plans[TierFree]; !ok {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("catalog must contain the free tier"))
	}

	for tier, p := range plans {
		if p.Tier != tier {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("tier mismatch: map key %s != plan.Tier %s", tier, p.Tier))
		}
		if !tier.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("unknown tier %q", tier))
		}
		if p.GenerationsPerDocument <= 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has non-positive generations per document", tier))
		}
		if p.Cooldown <= 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has non-positive cooldown", tier))
		}
		for _, key := range []QuotaKey{QuotaPDFUploads, QuotaWebsiteUploads} {
			if limit, ok := p.UploadLimits[key]; !ok || limit < 0 {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has missing or negative limit for %s", tier, key))
			}
		}
	}
	return nil
}
