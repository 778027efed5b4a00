package domain

import "strings"

// TierKind discriminates the closed set of tier variants.
type TierKind int

const (
	// TierDefault covers the full catalog.
	TierDefault TierKind = iota
	// TierNamed filters the catalog by a difficulty label.
	TierNamed
	// TierUserCustom is the extension point for per-user rotations.
	TierUserCustom
)

// Tier partitions the catalog into an independent rotation track. It is a
// tagged variant; construct via DefaultTier, NamedTier or UserTier and
// dispatch on Kind at the single eligibility point in the selector.
type Tier struct {
	kind   TierKind
	label  string
	userID string
}

func DefaultTier() Tier { return Tier{kind: TierDefault} }

func NamedTier(label string) Tier { return Tier{kind: TierNamed, label: label} }

func UserTier(userID string) Tier { return Tier{kind: TierUserCustom, userID: userID} }

func (t Tier) Kind() TierKind { return t.kind }

// Label is the difficulty label for named tiers, empty otherwise.
func (t Tier) Label() string { return t.label }

// UserID is the owning user for custom tiers, empty otherwise.
func (t Tier) UserID() string { return t.userID }

// Key is the stable storage representation of the tier.
func (t Tier) Key() string {
	switch t.kind {
	case TierNamed:
		return "named:" + t.label
	case TierUserCustom:
		return "user:" + t.userID
	default:
		return "default"
	}
}

// ParseTierKey reverses Key. Unknown prefixes fall back to a named tier so a
// stored label never silently widens to the full catalog.
func ParseTierKey(key string) Tier {
	switch {
	case key == "" || key == "default":
		return DefaultTier()
	case strings.HasPrefix(key, "named:"):
		return NamedTier(strings.TrimPrefix(key, "named:"))
	case strings.HasPrefix(key, "user:"):
		return UserTier(strings.TrimPrefix(key, "user:"))
	default:
		return NamedTier(key)
	}
}

// Track identifies one rotation track: a tier plus an owner. An empty owner
// is the global track shared by all users.
type Track struct {
	Tier    Tier
	OwnerID string
}

// GlobalTrack is the shared track for a tier.
func GlobalTrack(tier Tier) Track { return Track{Tier: tier} }

// Key uniquely identifies the track in storage.
func (tr Track) Key() string {
	return tr.Tier.Key() + "|" + tr.OwnerID
}
