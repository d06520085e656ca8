package permission

import (
	"errors"
	"strings"
)

const (
	// Wildcard grants every method on a resource.
	Wildcard = "*"
	// Separator joins resource and method inside a token.
	Separator = ":"
)

var (
	// ErrEmptyResource is returned when a rule has no resource.
	ErrEmptyResource = errors.New("acl rule resource must be informed")
	// ErrInvalidResource is returned when a resource contains the token separator.
	ErrInvalidResource = errors.New("acl rule resource must not contain ':'")
	// ErrEmptyMethod is returned when a rule lists an empty method.
	ErrEmptyMethod = errors.New("acl rule method must not be empty")
	// ErrInvalidMethod is returned when a method contains the token separator.
	ErrInvalidMethod = errors.New("acl rule method must not contain ':'")
)

// Rule grants Methods on Resource. An empty Methods grants every method.
type Rule struct {
	Resource string   `json:"resource" yaml:"resource"`
	Methods  []string `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// All returns the bare-name form of a rule: every method on resource.
func All(resource string) Rule {
	return Rule{Resource: resource}
}

// Token builds the set member for one (resource, method) grant.
func Token(resource, method string) string {
	return strings.ToLower(resource) + Separator + strings.ToUpper(method)
}

// Encode flattens rules into tokens, deduplicated, in first-seen order.
func Encode(rules []Rule) ([]string, error) {
	tokens := make([]string, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))

	for _, rule := range rules {
		resource := strings.ToLower(strings.TrimSpace(rule.Resource))
		if resource == "" {
			return nil, ErrEmptyResource
		}
		if strings.Contains(resource, Separator) {
			return nil, ErrInvalidResource
		}

		methods := rule.Methods
		if len(methods) == 0 {
			methods = []string{Wildcard}
		}

		for _, method := range methods {
			method = strings.TrimSpace(method)
			if method == "" {
				return nil, ErrEmptyMethod
			}
			if strings.Contains(method, Separator) {
				return nil, ErrInvalidMethod
			}
			token := resource + Separator + strings.ToUpper(method)
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}

	return tokens, nil
}

// Decode groups tokens back into rules. Resources and methods keep the order
// in which they first appear; duplicate methods are dropped. Tokens without a
// separator are skipped.
func Decode(tokens []string) []Rule {
	rules := make([]Rule, 0, len(tokens))
	index := make(map[string]int, len(tokens))

	for _, token := range tokens {
		i := strings.LastIndex(token, Separator)
		if i <= 0 || i == len(token)-1 {
			continue
		}
		resource, method := token[:i], token[i+1:]

		pos, ok := index[resource]
		if !ok {
			index[resource] = len(rules)
			rules = append(rules, Rule{Resource: resource, Methods: []string{method}})
			continue
		}
		if !containsString(rules[pos].Methods, method) {
			rules[pos].Methods = append(rules[pos].Methods, method)
		}
	}

	return rules
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
