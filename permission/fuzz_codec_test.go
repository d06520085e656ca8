package permission

import (
	"strings"
	"testing"
)

func FuzzEncodeDecode(f *testing.F) {
	f.Add("docs", "get,post")
	f.Add("habilis/cadastro", "")
	f.Add("Ünïcode", "*")

	f.Fuzz(func(t *testing.T, resource, methods string) {
		var list []string
		if methods != "" {
			list = strings.Split(methods, ",")
		}
		tokens, err := Encode([]Rule{{Resource: resource, Methods: list}})
		if err != nil {
			return
		}

		rules := Decode(tokens)
		if len(rules) != 1 {
			t.Fatalf("expected one rule for %q, got %v", resource, rules)
		}
		set := NewTokenSet(tokens)
		for _, m := range rules[0].Methods {
			if !Allows(set, rules[0].Resource, m) {
				t.Fatalf("decoded grant %s:%s not allowed", rules[0].Resource, m)
			}
		}
	})
}
