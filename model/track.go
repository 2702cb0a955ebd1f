package model

// Track is one playable unit resolved from the catalog.
// It is immutable once resolved.
type Track struct {
	Index    int    `json:"index"`    // Position in the catalog snapshot it was drawn from
	Name     string `json:"name"`     // Stable identifier (file or object name)
	Handle   string `json:"handle"`   // Content handle: path, object key or URI
	Title    string `json:"title"`    // Display title from the payload, may be empty
	Duration int    `json:"duration"` // Whole seconds; 0 means unknown
}

// TrackMeta is the subset of a track payload the catalog needs.
// Payloads also carry base64 "audio" and "image" fields which are
// passed through to clients untouched.
type TrackMeta struct {
	Title    string `json:"title"`
	Duration string `json:"duration"` // "m:ss" or "h:mm:ss"
}

// CatalogEntry is the admin view of a catalog item.
type CatalogEntry struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Duration string `json:"duration,omitempty"`
}
