package document

import (
	"maps"
	"time"

	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// SourceType discriminates uploaded PDFs from submitted URLs.
type SourceType string

const (
	SourcePDF SourceType = "pdf"
	SourceURL SourceType = "url"
)

// Valid reports whether the source type is known.
func (s SourceType) Valid() bool {
	return s == SourcePDF || s == SourceURL
}

// MaxContentLength bounds the stored extracted text. Extraction happens
// upstream; the store only refuses oversized payloads.
const MaxContentLength = 200_000

// Generation is one produced artifact for a platform.
type Generation struct {
	Content     string    `bson:"content" json:"content"`
	GeneratedAt time.Time `bson:"generatedAt" json:"generatedAt"`
}

// Document is one uploaded PDF or URL with its per-platform generation state.
// Counts are bounded by the owner's plan at generation time and are not
// re-checked retroactively when the plan later downgrades.
type Document struct {
	ID               string                       `bson:"_id" json:"id"`
	OwnerID          string                       `bson:"ownerId" json:"ownerId"`
	SourceType       SourceType                   `bson:"sourceType" json:"sourceType"`
	Content          string                       `bson:"content" json:"-"`
	GenerationCounts map[plan.Platform]int64      `bson:"generationCounts" json:"generationCounts"`
	Generated        map[plan.Platform]Generation `bson:"generated,omitempty" json:"generated,omitempty"`
	CreatedAt        time.Time                    `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time                    `bson:"updatedAt" json:"-"`
	Version          int64                        `bson:"version" json:"-"`
}

// New creates a document for an owner with zeroed generation counts.
func New(id, ownerID string, src SourceType, content string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:               id,
		OwnerID:          ownerID,
		SourceType:       src,
		Content:          content,
		GenerationCounts: make(map[plan.Platform]int64),
		Generated:        make(map[plan.Platform]Generation),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.GenerationCounts = maps.Clone(d.GenerationCounts)
	cp.Generated = maps.Clone(d.Generated)
	return &cp
}
