package permission

import (
	"context"
	"strings"
)

// TokenSet is an in-memory ACL token set.
type TokenSet map[string]struct{}

// NewTokenSet builds a TokenSet from encoded tokens.
func NewTokenSet(tokens []string) TokenSet {
	set := make(TokenSet, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Candidates returns the tokens that would grant method on resource, most
// specific first. An empty method means the caller did not name one, in which
// case only the wildcard grant counts.
func Candidates(resource, method string) []string {
	prefix := strings.ToLower(resource) + Separator
	if method == "" {
		return []string{prefix + Wildcard}
	}
	return []string{prefix + strings.ToUpper(method), prefix + Wildcard}
}

// Allows reports whether set grants method on resource.
func Allows(set TokenSet, resource, method string) bool {
	for _, token := range Candidates(resource, method) {
		if _, ok := set[token]; ok {
			return true
		}
	}
	return false
}

// MemberFunc reports whether role's ACL contains token.
type MemberFunc func(ctx context.Context, role, token string) (bool, error)

// Check evaluates roles in order and returns true at the first role granting
// method on resource. Empty role names never match. Lookup errors abort the
// check.
//
//	Performance: at most 2 lookups per role, independent of ACL size.
func Check(ctx context.Context, roles []string, resource, method string, member MemberFunc) (bool, error) {
	candidates := Candidates(resource, method)

	for _, role := range roles {
		if role == "" {
			continue
		}
		for _, token := range candidates {
			ok, err := member(ctx, role, token)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}

	return false, nil
}
