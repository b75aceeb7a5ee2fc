package support

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/agents"
)

var (
	ticketPriorities     = []string{"low", "medium", "high"}
	escalationPriorities = []string{"low", "normal", "high", "urgent"}
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Natural language search query"`
}

type lookupArgs struct {
	Email string `json:"email" jsonschema:"required,description=Customer email address"`
}

type ticketArgs struct {
	Title         string `json:"title" jsonschema:"required"`
	Description   string `json:"description" jsonschema:"required"`
	Priority      string `json:"priority" jsonschema:"required,description=Ticket priority,enum=low,enum=medium,enum=high"`
	CustomerEmail string `json:"customer_email" jsonschema:"required"`
	Category      string `json:"category,omitempty"`
}

type escalateArgs struct {
	Reason   string `json:"reason" jsonschema:"required"`
	TicketID string `json:"ticket_id,omitempty"`
	Priority string `json:"priority,omitempty" jsonschema:"default=normal,enum=low,enum=normal,enum=high,enum=urgent"`
}

// Article is one knowledge base hit.
type Article struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// SearchResult is the knowledge base response.
type SearchResult struct {
	Results []Article `json:"results"`
	Total   int       `json:"total"`
}

// Account is a CRM record.
type Account struct {
	Found         bool   `json:"found"`
	CustomerID    string `json:"customer_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Plan          string `json:"plan"`
	AccountStatus string `json:"account_status"`
	OpenTickets   int    `json:"open_tickets"`
	CreatedAt     string `json:"created_at"`
}

// Ticket is the outcome of create_ticket.
type Ticket struct {
	TicketID          string `json:"ticket_id"`
	Status            string `json:"status"`
	EstimatedResponse string `json:"estimated_response"`
}

// Escalation is the outcome of escalate_to_human.
type Escalation struct {
	Escalated     bool   `json:"escalated"`
	QueuePosition int    `json:"queue_position"`
	EstimatedWait string `json:"estimated_wait"`
}

// Tools returns the support agent's tools.
func Tools(opts Options) []copilot.Tool {
	t := &toolset{opts: opts.withDefaults()}
	return []copilot.Tool{
		copilot.DefineTool("search_knowledge_base", "Search the product knowledge base for answers to customer questions", t.search),
		copilot.DefineTool("lookup_account", "Look up customer account information by email address", t.lookup),
		copilot.DefineTool("create_ticket", "Create a support ticket for issues requiring follow-up", t.createTicket),
		copilot.DefineTool("escalate_to_human", "Escalate an unresolved issue to a human support agent", t.escalate),
	}
}

type toolset struct {
	opts Options
}

func (t *toolset) search(ctx context.Context, args searchArgs, _ copilot.ToolInvocation) (any, error) {
	if t.opts.KBURL == "" {
		return SearchResult{
			Results: []Article{{
				Title:   "Password Reset Guide",
				Content: "Go to Settings > Security > Reset Password to change your password.",
				URL:     "https://docs.example.com/password-reset",
			}},
			Total: 1,
		}, nil
	}

	u := strings.TrimRight(t.opts.KBURL, "/") + "/search?q=" + url.QueryEscape(args.Query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build kb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kb search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return agents.Fail("Knowledge base error: %d", resp.StatusCode), nil
	}
	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode kb response: %w", err)
	}
	return copilot.TextResult(string(out)), nil
}

func (t *toolset) lookup(_ context.Context, args lookupArgs, _ copilot.ToolInvocation) (any, error) {
	if !strings.Contains(args.Email, "@") {
		return agents.Fail("Invalid email address."), nil
	}
	return Account{
		Found:         true,
		CustomerID:    "cust_12345",
		Name:          "Jane Smith",
		Email:         args.Email,
		Plan:          "Pro",
		AccountStatus: "active",
		OpenTickets:   0,
		CreatedAt:     "2023-01-15",
	}, nil
}

func (t *toolset) createTicket(_ context.Context, args ticketArgs, _ copilot.ToolInvocation) (any, error) {
	if !oneOf(args.Priority, ticketPriorities) {
		return agents.Fail("Invalid priority %q. Use one of: %s.", args.Priority, strings.Join(ticketPriorities, ", ")), nil
	}
	id := "TKT-" + t.opts.NewID()
	t.opts.Logger.Info().
		Str("ticket_id", id).
		Str("priority", args.Priority).
		Str("customer", args.CustomerEmail).
		Str("category", args.Category).
		Msg(args.Title)

	eta := "24 hours"
	if args.Priority == "high" {
		eta = "2 hours"
	}
	return Ticket{TicketID: id, Status: "open", EstimatedResponse: eta}, nil
}

func (t *toolset) escalate(_ context.Context, args escalateArgs, _ copilot.ToolInvocation) (any, error) {
	if args.Priority == "" {
		args.Priority = "normal"
	}
	if !oneOf(args.Priority, escalationPriorities) {
		return agents.Fail("Invalid priority %q. Use one of: %s.", args.Priority, strings.Join(escalationPriorities, ", ")), nil
	}
	ticket := args.TicketID
	if ticket == "" {
		ticket = "no ticket"
	}
	t.opts.Logger.Warn().Str("priority", args.Priority).Str("ticket_id", ticket).Msg("escalation: " + args.Reason)

	if args.Priority == "urgent" {
		return Escalation{Escalated: true, QueuePosition: 1, EstimatedWait: "5 minutes"}, nil
	}
	return Escalation{Escalated: true, QueuePosition: 5, EstimatedWait: "30 minutes"}, nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
