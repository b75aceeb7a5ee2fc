package permission

import "github.com/bmatcuk/doublestar/v4"

// Rule is a declarative permission rule. Pattern is a doublestar glob
// matched against Request.Subject; an empty Kind matches every kind.
type Rule struct {
	Kind     Kind
	Pattern  string
	Decision Decision
}

// MatchRules evaluates rules against req.
// Evaluation order: deny rules, then ask rules, then allow rules.
// Returns (decision, matched). If no rule matches, matched is false.
func MatchRules(rules []Rule, req Request) (Decision, bool) {
	var hasAsk, hasAllow bool
	subject := req.Subject()

	for _, r := range rules {
		if r.Kind != "" && r.Kind != req.Kind {
			continue
		}
		ok, err := doublestar.Match(r.Pattern, subject)
		if err != nil || !ok {
			continue
		}
		switch r.Decision {
		case Deny:
			return Deny, true
		case Ask:
			hasAsk = true
		case Allow:
			hasAllow = true
		}
	}

	if hasAsk {
		return Ask, true
	}
	if hasAllow {
		return Allow, true
	}
	return Allow, false
}

// ParseDecision maps "allow", "deny" and "ask" to a Decision.
func ParseDecision(s string) (Decision, bool) {
	switch s {
	case "allow":
		return Allow, true
	case "deny":
		return Deny, true
	case "ask":
		return Ask, true
	}
	return Allow, false
}
