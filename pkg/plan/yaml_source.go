package plan

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLSource loads the plan catalog from a YAML file. It lets operators adjust
// price references and limits without a rebuild; the built-in defaults remain
// the fallback when no file is configured.
//
// Example file:
//
//	free:
//	  name: Free Plan
//	  pdf_uploads: 2
//	  website_uploads: 1
//	  generations_per_document: 1
//	  cooldown: 3s
//	pro:
//	  name: Pro Plan
//	  price_ref: price_pro
//	  pdf_uploads: 80
//	  website_uploads: 50
//	  generations_per_document: 3
//	  cooldown: 2s
type YAMLSource struct {
	Path string
}

type yamlPlan struct {
	Name                   string `yaml:"name"`
	PriceRef               string `yaml:"price_ref"`
	PDFUploads             int64  `yaml:"pdf_uploads"`
	WebsiteUploads         int64  `yaml:"website_uploads"`
	GenerationsPerDocument int64  `yaml:"generations_per_document"`
	Cooldown               string `yaml:"cooldown"`
}

// Load reads and parses the catalog file.
func (s YAMLSource) Load(_ context.Context) (map[Tier]Plan, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", s.Path, err)
	}

	var parsed map[Tier]yamlPlan
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", s.Path, err)
	}

	plans := make(map[Tier]Plan, len(parsed))
	for tier, yp := range parsed {
		cooldown, err := time.ParseDuration(yp.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("plan %s: invalid cooldown %q: %w", tier, yp.Cooldown, err)
		}
		plans[tier] = Plan{
			Tier:     tier,
			Name:     yp.Name,
			PriceRef: yp.PriceRef,
			UploadLimits: map[QuotaKey]int64{
				QuotaPDFUploads:     yp.PDFUploads,
				QuotaWebsiteUploads: yp.WebsiteUploads,
			},
			GenerationsPerDocument: yp.GenerationsPerDocument,
			Cooldown:               cooldown,
		}
	}
	return plans, nil
}

// StaticSource serves a fixed plan map. Useful in tests and as the default
// source when no catalog file is configured.
type StaticSource map[Tier]Plan

func (s StaticSource) Load(_ context.Context) (map[Tier]Plan, error) {
	return s, nil
}
