package copilot

import (
	"context"

	"github.com/armatrix/copilot-sdk-go/permission"
)

// PermissionRequest is a permission request sent by the CLI.
type PermissionRequest = permission.Request

// PermissionResult answers a PermissionRequest.
type PermissionResult = permission.Result

// PermissionInvocation identifies the session a request belongs to.
type PermissionInvocation struct {
	SessionID string
}

// PermissionHandlerFunc decides a permission request. A returned error is
// answered with permission.DeniedNoApprovalRuleOrUser.
type PermissionHandlerFunc func(ctx context.Context, req PermissionRequest, inv PermissionInvocation) (PermissionResult, error)

// PermissionHandler groups ready-made handlers.
var PermissionHandler = struct {
	// ApproveAll approves every request.
	ApproveAll PermissionHandlerFunc
	// DenyAll denies every request by rule.
	DenyAll PermissionHandlerFunc
}{
	ApproveAll: func(context.Context, PermissionRequest, PermissionInvocation) (PermissionResult, error) {
		return PermissionResult{Kind: permission.Approved}, nil
	},
	DenyAll: func(context.Context, PermissionRequest, PermissionInvocation) (PermissionResult, error) {
		return PermissionResult{Kind: permission.DeniedByRules}, nil
	},
}

// PermissionHandlerFromChecker answers requests with a rule-based checker.
func PermissionHandlerFromChecker(c *permission.Checker) PermissionHandlerFunc {
	return func(ctx context.Context, req PermissionRequest, _ PermissionInvocation) (PermissionResult, error) {
		return c.Handle(ctx, req)
	}
}
