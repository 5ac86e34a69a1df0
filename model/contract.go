package model

import (
	"time"
)

// Contract status. The transition is one-way: a signed contract never
// returns to pending and there is no rejected state.
const (
	StatusPending = "pending"
	StatusSigned  = "signed"
)

// Locator backend kinds. A locator is opaque to callers; only the blob
// resolver interprets it.
const (
	LocatorLink   = "link"   // shareable download URL minted by the cloud store
	LocatorObject = "object" // cloud store object key
	LocatorURL    = "url"    // generic absolute URL
	LocatorLocal  = "local"  // path relative to the local storage root
)

// Event names accepted by the event-posting endpoint.
const (
	EventSlackVisited    = "slack_visited"
	EventNotionCompleted = "notion_completed"
)

// Locator is an opaque storage reference: a backend tag plus a path or
// URL meaningful only to that backend.
type Locator struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

// IsZero reports whether the locator has not been assigned.
func (l Locator) IsZero() bool {
	return l.Kind == "" && l.Ref == ""
}

// Events holds the one-way engagement flags that feed the progress
// computation. Flags only ever transition false -> true.
type Events struct {
	SlackVisited    bool `json:"slack_visited"`
	NotionCompleted bool `json:"notion_completed"`
}

// SignatureRecord is the immutable outcome of a successful signing.
// Sha256 is the hex digest over the final signed bytes, Signature the
// base64 ECDSA P-256 detached signature over that digest. Both are
// re-checkable with the public key alone.
type SignatureRecord struct {
	SignerName string    `json:"signer_name"`
	SignedAt   time.Time `json:"signed_at"`
	Sha256     string    `json:"sha256"`
	Signature  string    `json:"ecdsa_signature"`
	Locator    Locator   `json:"locator"`
}

// Credentials are generated once per access grant and never rotated.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// Tool is one entry of the ordered onboarding tool list. A locked tool
// withholds its URL until the distributor reaches full progress.
type Tool struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Locked bool   `json:"locked"`
}

// AccessGrant bundles the credentials and tools issued once a contract
// is signed. Progress is a cache of the progress computation, refreshed
// on every read and event posting, never incremented directly.
type AccessGrant struct {
	Unlocked     bool        `json:"unlocked"`
	GeneratedAt  time.Time   `json:"generated_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
	Credentials  Credentials `json:"credentials"`
	Tools        []Tool      `json:"tools"`
	Progress     int         `json:"progress"`
	NotifyFailed bool        `json:"notify_failed,omitempty"`
}

// Contract represents one uploaded document and its lifecycle state.
type Contract struct {
	ID              string           `json:"id"`
	VendorID        string           `json:"vendor_id"`
	VendorEmail     string           `json:"vendor_email"`
	AssignedToEmail string           `json:"assigned_to_email"`
	OriginalName    string           `json:"original_name"`
	Locator         Locator          `json:"locator"`
	Status          string           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	SignedAt        *time.Time       `json:"signed_at,omitempty"`
	Signature       *SignatureRecord `json:"signature,omitempty"`
	Events          Events           `json:"events"`
	Access          *AccessGrant     `json:"access,omitempty"`
}

// Clone returns a deep copy so callers can read a contract without
// racing registry mutations.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	cp := *c
	if c.SignedAt != nil {
		t := *c.SignedAt
		cp.SignedAt = &t
	}
	if c.Signature != nil {
		sig := *c.Signature
		cp.Signature = &sig
	}
	if c.Access != nil {
		cp.Access = c.Access.Clone()
	}
	return &cp
}

// Clone returns a deep copy of the grant.
func (g *AccessGrant) Clone() *AccessGrant {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Tools = make([]Tool, len(g.Tools))
	copy(cp.Tools, g.Tools)
	return &cp
}
