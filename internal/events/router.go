package events

import "strings"

// Topics maps event types to broker topics by prefix.
type Topics struct {
	HealthCheck  string
	Registration string
	Fallback     string
}

func DefaultTopics() Topics {
	return Topics{
		HealthCheck:  "health-check",
		Registration: "api-registered",
		Fallback:     "domain-events",
	}
}

func (t Topics) For(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "health-check"):
		return t.HealthCheck
	case strings.HasPrefix(eventType, "api"):
		return t.Registration
	default:
		return t.Fallback
	}
}

// All lists the distinct topics, in routing order.
func (t Topics) All() []string {
	out := make([]string, 0, 3)
	seen := map[string]bool{}
	for _, s := range []string{t.HealthCheck, t.Registration, t.Fallback} {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
