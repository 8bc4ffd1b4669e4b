package sync

// UpdateSubject is the NATS subject targeted single-article updates arrive on.
const UpdateSubject = "search.article.update"

// UpdateRequest is the wire form of a targeted update, applied via UpdateOne.
type UpdateRequest struct {
	Identifier   string `json:"identifier"`
	OldSlug      string `json:"old_slug,omitempty"`
	ForceReembed bool   `json:"force_reembed"`
}
