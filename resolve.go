package hxbus

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Reserved address tokens understood by the partial-update transport.
// Any reference starting with TokenPrefix is passed through unresolved.
const (
	TokenPrefix = "@"
	TokenThis   = "@this"
	TokenNone   = "@none"
	TokenAll    = "@all"
	TokenForm   = "@form"
)

// IsToken reports whether ref is a reserved symbolic token.
func IsToken(ref string) bool {
	return strings.HasPrefix(ref, TokenPrefix)
}

// Resolve converts a reference relative to root into an absolute address.
//
// Empty references and reserved tokens are returned unchanged. Anything
// else must name an element reachable from root; otherwise a
// *ResolutionError is returned.
func Resolve(root Node, ref string) (string, error) {
	if ref == "" || IsToken(ref) {
		return ref, nil
	}
	found, ok := root.Find(ref)
	if !ok {
		return "", &ResolutionError{
			Reference:  ref,
			Root:       root.ClientID(),
			Suggestion: suggest(root, ref),
		}
	}
	return found.ClientID(), nil
}

// ResolveList resolves each reference against root. The result holds
// each absolute address once, in first-seen order. An empty input yields
// an empty result; callers pick their own default token.
func ResolveList(root Node, refs []string) ([]string, error) {
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		addr, err := Resolve(root, ref)
		if err != nil {
			return nil, err
		}
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

// ResolveFields splits s on runs of whitespace and resolves the tokens
// with ResolveList.
func ResolveFields(root Node, s string) ([]string, error) {
	return ResolveList(root, strings.Fields(s))
}

// suggest returns the candidate closest to ref, or "" when root cannot
// enumerate candidates or nothing is reasonably close.
func suggest(root Node, ref string) string {
	lister, ok := root.(CandidateLister)
	if !ok {
		return ""
	}
	best := ""
	bestDist := len(ref)/2 + 1
	for _, c := range lister.Candidates() {
		d := levenshtein.ComputeDistance(ref, c)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
