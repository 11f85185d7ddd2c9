// Package document defines the indexed text unit (spec §3.1, §6.3) shared
// by the vector store, retrieval, and generation layers.
package document

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/hanbit-ai/advisor-rag/domainlabel"
)

// Collection is a named partition in the vector store: one per domain plus
// the shared law_common collection (spec §3.1).
type Collection string

// CollectionForDomain returns the collection key for a domain label — at
// query time collection choice is by domain (build time is by
// file-to-collection mapping, which lives in the out-of-scope preprocessing
// pipeline).
func CollectionForDomain(d domainlabel.Label) Collection {
	return Collection(d)
}

// Document is an indexed text unit. Content is the sole target of
// retrieval scoring; Title and the Source* fields are display-only (spec
// §3.1 invariant).
type Document struct {
	Content  string
	Metadata map[string]any
}

// metadata key constants, spec §3.1/§6.3.
const (
	MetaID            = "id"
	MetaType          = "type"
	MetaDomain        = "domain"
	MetaTitle         = "title"
	MetaSourceName    = "source_name"
	MetaSourceURL     = "source_url"
	MetaCollectedAt   = "collected_at"
	MetaChunkIndex    = "chunk_index"
	MetaOriginalID    = "original_id"
	MetaEffectiveDate = "effective_date"
	MetaRelatedLaws   = "related_laws"
)

// StringMeta returns a metadata value as a string, or "" if absent/wrong type.
func (d Document) StringMeta(key string) string {
	if v, ok := d.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Domain returns the document's source domain, as recorded in metadata.
func (d Document) Domain() domainlabel.Label {
	return domainlabel.Label(d.StringMeta(MetaDomain))
}

// ID returns the document's stable identifier.
func (d Document) ID() string { return d.StringMeta(MetaID) }

// ContentHashPrefixLen is the number of leading bytes of Content used for
// the dedup hash (spec §4.2 invariant, §4.6.5 step 2).
const ContentHashPrefixLen = 500

// ContentHash returns the dedup key hash(content[:500]) used throughout
// retrieval to recognise the same document returned by different search
// paths (spec §4.2, §4.6.5).
func ContentHash(content string) string {
	prefix := content
	if len(prefix) > ContentHashPrefixLen {
		prefix = prefix[:ContentHashPrefixLen]
	}
	sum := sha256.Sum256([]byte(prefix))
	return hex.EncodeToString(sum[:])
}

// Hash is a convenience wrapper around ContentHash for a Document.
func (d Document) Hash() string { return ContentHash(d.Content) }

// WithTitlePrefix returns content with the document's title prepended as
// its first line, per spec §6.3 ("content carries the title as its first
// line so chunk-only retrieval retains titling context"). Used when
// indexing, not at query time (Content is assumed to already carry it for
// documents coming out of the store).
func WithTitlePrefix(title, content string) string {
	if title == "" {
		return content
	}
	return title + "\n" + content
}
