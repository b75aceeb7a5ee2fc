// Package copilot is a Go client for the GitHub Copilot CLI running in server
// mode. It spawns (or connects to) the CLI, speaks JSON-RPC over stdio or TCP,
// and exposes conversational sessions with client-side tools.
//
//   - [Client] owns the CLI process and the connection.
//   - [Session] is one conversation; its RPC field reaches the per-session
//     method surface (agents, compaction, plan, workspace, mode, model).
//
// # Quick Start
//
//	client := copilot.NewClient(&copilot.ClientOptions{UseStdio: copilot.Bool(true)})
//	if err := client.Start(ctx); err != nil {
//	    return err
//	}
//	defer client.Stop()
//
//	session, err := client.CreateSession(ctx, &copilot.SessionConfig{
//	    Model:               copilot.DefaultModel,
//	    OnPermissionRequest: copilot.PermissionHandler.ApproveAll,
//	})
//	if err != nil {
//	    return err
//	}
//	reply, err := session.SendAndWait(ctx, copilot.MessageOptions{Prompt: "Hello"})
//
// # Sub-packages
//
//   - [rpc] holds the typed request/response pairs of the CLI methods.
//   - [permission] models permission requests and a rule-based checker.
//   - [hook] provides hook types for intercepting tool execution.
//   - [mcp] describes MCP servers handed to the CLI.
//   - [session] maps external thread keys to CLI session IDs.
package copilot
