// Package approval decides when pipeline mutations need human
// sign-off, and manages the pending decisions and resume tokens those
// sign-offs flow through.
//
// The gate itself is pure: it inspects a value, its origin, and the
// policy, and reports whether confirmation is required. It never
// performs or blocks the gated operation; callers react to a true
// result by recording a pending decision and pausing the affected
// work.
package approval

import "github.com/trevorWieland/rentl-sub001/internal/model"

// RequiresApproval reports whether overwriting a provenance-tracked
// field needs human sign-off. Permissive never asks and strict always
// asks; standard protects exactly the non-empty values a human wrote,
// so agent-authored or unmarked data may be overwritten silently.
func RequiresApproval(value, origin string, policy model.ApprovalPolicy) bool {
	switch policy {
	case model.ApprovalPermissive:
		return false
	case model.ApprovalStrict:
		return true
	default:
		if value == "" {
			return false
		}
		return origin == model.OriginHuman
	}
}

// EntryRequiresApproval reports whether deleting a whole entry needs
// human sign-off. Under standard policy a single human-authored
// tracked field protects the entire entry.
func EntryRequiresApproval(originFields []string, policy model.ApprovalPolicy) bool {
	switch policy {
	case model.ApprovalPermissive:
		return false
	case model.ApprovalStrict:
		return true
	default:
		for _, origin := range originFields {
			if origin == model.OriginHuman {
				return true
			}
		}
		return false
	}
}
