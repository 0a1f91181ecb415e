package status

import "strings"

// Status is the display status of one inventory row
type Status string

const (
	Sufficient Status = "SUFFICIENT"
	NeedsOrder Status = "NEEDS_ORDER"
	Ordering   Status = "ORDERING"
	Unset      Status = "UNSET"
)

// Policy decides whether a status reported by the backend is trusted
type Policy string

const (
	PolicyPreferBackend Policy = "prefer_backend"
	PolicyDerive        Policy = "derive"
)

// ParsePolicy maps a config value to a Policy. Unknown values fall back to PolicyPreferBackend.
func ParsePolicy(value string) Policy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "derive", "always_derive", "client":
		return PolicyDerive
	default:
		return PolicyPreferBackend
	}
}

// Derive computes the status from the three stock quantities.
// A nil quantity means the backend did not report it.
func Derive(current, optimal, reorderThreshold *int) Status {
	if current == nil || optimal == nil || reorderThreshold == nil {
		return Unset
	}
	switch {
	case *current <= *reorderThreshold:
		return NeedsOrder
	case *current < *optimal:
		return Ordering
	default:
		return Sufficient
	}
}

// backendLabels covers every status spelling the backend variants have been seen to send
var backendLabels = map[string]Status{
	"sufficient":  Sufficient,
	"in_stock":    Sufficient,
	"needs_order": NeedsOrder,
	"not_ordered": NeedsOrder,
	"reorder":     NeedsOrder,
	"ordering":    Ordering,
	"ordered":     Ordering,
	"unset":       Unset,
	"在庫十分":        Sufficient,
	"未発注":         NeedsOrder,
	"発注中":         Ordering,
	"発注済み":        Ordering,
	"未設定":         Unset,
}

// Parse recognizes a backend-supplied status string
func Parse(raw string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	key = strings.ReplaceAll(key, "-", "_")
	s, ok := backendLabels[key]
	return s, ok
}

// Resolve applies the policy: under PolicyPreferBackend a recognized backend status wins,
// otherwise the status is derived from the quantities.
func Resolve(policy Policy, backendStatus string, current, optimal, reorderThreshold *int) Status {
	if policy == PolicyPreferBackend {
		if s, ok := Parse(backendStatus); ok {
			return s
		}
	}
	return Derive(current, optimal, reorderThreshold)
}

// Label returns the Japanese label shown in the status column
func (s Status) Label() string {
	switch s {
	case Sufficient:
		return "在庫十分"
	case NeedsOrder:
		return "未発注"
	case Ordering:
		return "発注中"
	default:
		return "未設定"
	}
}
