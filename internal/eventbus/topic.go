package eventbus

import (
	"fmt"
	"strings"
)

// ExchangeKind is the only exchange type the bus declares.
const ExchangeKind = "topic"

// MatchRoutingKey reports whether a dot separated routing key matches a
// binding pattern. "*" matches exactly one word and "#" matches zero or more.
func MatchRoutingKey(pattern, routingKey string) bool {
	return matchWords(words(pattern), words(routingKey))
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}

	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}

func words(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// ValidateRoutingKey checks the <entity>.<action> shape used for publishing.
func ValidateRoutingKey(routingKey string) error {
	if routingKey == "" {
		return fmt.Errorf("eventbus: empty routing key")
	}
	for _, w := range words(routingKey) {
		if w == "" {
			return fmt.Errorf("eventbus: routing key %q has an empty word", routingKey)
		}
		if strings.ContainsAny(w, "*#") {
			return fmt.Errorf("eventbus: routing key %q contains a wildcard", routingKey)
		}
	}
	return nil
}

// ValidatePattern checks a binding pattern. Wildcards must stand alone as a word.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("eventbus: empty binding pattern")
	}
	for _, w := range words(pattern) {
		if w == "" {
			return fmt.Errorf("eventbus: pattern %q has an empty word", pattern)
		}
		if w != "*" && w != "#" && strings.ContainsAny(w, "*#") {
			return fmt.Errorf("eventbus: pattern %q mixes a wildcard into a word", pattern)
		}
	}
	return nil
}
