package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/armatrix/copilot-sdk-go/permission"
)

func shell(cmd string) permission.Request {
	return permission.Request{Kind: permission.KindShell, FullCommandText: cmd}
}

func TestMatchRules_DenyTakesPrecedence(t *testing.T) {
	rules := []permission.Rule{
		{Pattern: "kubectl *", Decision: permission.Allow},
		{Pattern: "kubectl *", Decision: permission.Ask},
		{Pattern: "kubectl *", Decision: permission.Deny},
	}

	d, matched := permission.MatchRules(rules, shell("kubectl get pods"))
	assert.True(t, matched)
	assert.Equal(t, permission.Deny, d)
}

func TestMatchRules_AskBeforeAllow(t *testing.T) {
	rules := []permission.Rule{
		{Pattern: "git *", Decision: permission.Allow},
		{Pattern: "git *", Decision: permission.Ask},
	}

	d, matched := permission.MatchRules(rules, shell("git push"))
	assert.True(t, matched)
	assert.Equal(t, permission.Ask, d)
}

func TestMatchRules_GlobPatterns(t *testing.T) {
	rules := []permission.Rule{
		{Kind: permission.KindWrite, Pattern: "src/**/*.go", Decision: permission.Allow},
		{Kind: permission.KindURL, Pattern: "https://api.github.com/**", Decision: permission.Allow},
		{Kind: permission.KindRead, Pattern: "/etc/**", Decision: permission.Deny},
	}

	tests := []struct {
		name      string
		req       permission.Request
		wantDec   permission.Decision
		wantMatch bool
	}{
		{"nested go file", permission.Request{Kind: permission.KindWrite, FileName: "src/agents/devops/tools.go"}, permission.Allow, true},
		{"non go file", permission.Request{Kind: permission.KindWrite, FileName: "src/README.md"}, permission.Allow, false},
		{"github url", permission.Request{Kind: permission.KindURL, URL: "https://api.github.com/repos/o/r/pulls/1"}, permission.Allow, true},
		{"other url", permission.Request{Kind: permission.KindURL, URL: "https://example.com/x"}, permission.Allow, false},
		{"etc read", permission.Request{Kind: permission.KindRead, Path: "/etc/passwd"}, permission.Deny, true},
		{"kind mismatch", permission.Request{Kind: permission.KindWrite, FileName: "/etc/passwd"}, permission.Allow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, matched := permission.MatchRules(rules, tt.req)
			assert.Equal(t, tt.wantMatch, matched)
			if matched {
				assert.Equal(t, tt.wantDec, d)
			}
		})
	}
}

func TestMatchRules_Empty(t *testing.T) {
	d, matched := permission.MatchRules(nil, shell("ls"))
	assert.False(t, matched)
	assert.Equal(t, permission.Allow, d)
}

func TestMatchRules_InvalidPatternSkipped(t *testing.T) {
	rules := []permission.Rule{{Pattern: "[", Decision: permission.Deny}}
	_, matched := permission.MatchRules(rules, shell("["))
	assert.False(t, matched)
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]permission.Decision{"allow": permission.Allow, "deny": permission.Deny, "ask": permission.Ask} {
		d, ok := permission.ParseDecision(in)
		assert.True(t, ok)
		assert.Equal(t, want, d)
	}
	_, ok := permission.ParseDecision("maybe")
	assert.False(t, ok)
}
