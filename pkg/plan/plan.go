package plan

import "time"

// Tier is the commercial tier of an account.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Valid reports whether the tier is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro
}

// QuotaKey identifies a per-account upload counter.
type QuotaKey string

const (
	QuotaPDFUploads     QuotaKey = "pdfUploads"
	QuotaWebsiteUploads QuotaKey = "websiteUploads"
)

// Valid reports whether the quota key is one of the known upload counters.
func (k QuotaKey) Valid() bool {
	return k == QuotaPDFUploads || k == QuotaWebsiteUploads
}

// Platform is a content generation target.
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformYouTube Platform = "youtube"
	PlatformTikTok  Platform = "tiktok"
)

// Valid reports whether the platform is one of the supported targets.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformYouTube, PlatformTikTok:
		return true
	}
	return false
}

// Plan describes a tier's resource constraints. Limits are fully determined by
// the tier and must be re-derived from the catalog on every decision, never
// trusted from client input or stale account snapshots.
type Plan struct {
	Tier                   Tier
	Name                   string
	PriceRef               string // provider's price ID for paid tiers, empty for free
	UploadLimits           map[QuotaKey]int64
	GenerationsPerDocument int64
	Cooldown               time.Duration // minimum interval between generation requests
}

// UploadLimit returns the limit for a quota key, or 0 for unknown keys.
func (p Plan) UploadLimit(key QuotaKey) int64 {
	return p.UploadLimits[key]
}
