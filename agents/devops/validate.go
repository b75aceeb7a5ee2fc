package devops

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	k8sNameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	// Single-unit only: "1h30m" is rejected.
	durationRe = regexp.MustCompile(`^[0-9]+(h|m|s)$`)
)

// allowedSubcommands are the kubectl verbs that cannot change cluster state.
var allowedSubcommands = map[string]bool{
	"get":      true,
	"describe": true,
	"logs":     true,
	"top":      true,
	"rollout":  true,
}

// ValidateK8sName checks value against the DNS-label rule Kubernetes uses
// for names. label names the field in the error.
func ValidateK8sName(value, label string) error {
	if !k8sNameRe.MatchString(value) {
		return fmt.Errorf("Invalid %s. Use lowercase alphanumeric characters and hyphens only.", label)
	}
	return nil
}

// ValidateDuration checks a --since value such as 1h, 30m or 90s.
func ValidateDuration(value string) error {
	if !durationRe.MatchString(value) {
		return errors.New("Invalid duration format. Use a value like 1h, 30m, or 2h.")
	}
	return nil
}

// ValidateKubectl splits command into arguments and checks that the
// subcommand is read-only.
func ValidateKubectl(command string) ([]string, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("No command provided")
	}
	if !allowedSubcommands[args[0]] {
		return nil, fmt.Errorf("Only read-only kubectl commands are permitted. Allowed: %s", strings.Join(AllowedSubcommands(), ", "))
	}
	return args, nil
}

// AllowedSubcommands returns the permitted kubectl verbs, sorted.
func AllowedSubcommands() []string {
	out := make([]string, 0, len(allowedSubcommands))
	for k := range allowedSubcommands {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
