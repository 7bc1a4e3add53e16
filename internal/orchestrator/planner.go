package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/agents"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

const finishToolName = "finish"

// toolNameFor maps an agent kind to its planner tool name
func toolNameFor(kind agents.Kind) string {
	return "consult_" + strings.ReplaceAll(string(kind), "-", "_")
}

// kindForTool is the reverse mapping; false for anything unknown
func kindForTool(name string) (agents.Kind, bool) {
	if !strings.HasPrefix(name, "consult_") {
		return "", false
	}
	raw := strings.ReplaceAll(strings.TrimPrefix(name, "consult_"), "_", "-")
	return agents.ParseKind(raw)
}

var agentToolDescriptions = map[agents.Kind]string{
	agents.KindDataAnalysis:     "Consult the data analyst for spending totals, category breakdowns, and trends from the user's records",
	agents.KindAdvisory:         "Consult the financial advisor for budget health, savings optimization, and recommendations",
	agents.KindMarketLookup:     "Consult the market specialist for current stock, fund, or currency prices",
	agents.KindGeneralKnowledge: "Consult the information specialist for general financial knowledge, product comparisons, and terminology",
}

// LLMPlanner routes user messages to agents via tool-calling. Its
// output contract is strict regardless of what the model does: the
// first valid tool call wins, unknown tool names coerce to finish, and
// backend failures come back as a finish decision rather than an error.
type LLMPlanner struct {
	ai      ai.ChatCompleter
	timeout time.Duration
	log     *logger.Logger
}

// NewLLMPlanner creates a planner backed by the chat completion API
func NewLLMPlanner(completer ai.ChatCompleter, timeout time.Duration) *LLMPlanner {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &LLMPlanner{
		ai:      completer,
		timeout: timeout,
		log:     logger.Get().With("component", "planner"),
	}
}

// Compile-time check that we implement the interface
var _ Planner = (*LLMPlanner)(nil)

// Decide asks the model which agent to consult next, or whether enough
// is known to answer.
func (p *LLMPlanner) Decide(ctx context.Context, userMessage string, bundle *chat.ContextBundle, sofar []chat.AgentInvocation) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msgs := p.buildMessages(userMessage, bundle, sofar)
	tools := p.buildTools(sofar)

	completion, err := p.ai.Complete(ctx, msgs, tools)
	if err != nil {
		// Planner hiccups are absorbed: fall through to synthesis with
		// whatever agent output has been collected so far
		p.log.Warnf("Planner backend failed, finishing turn: %v", err)
		return Decision{Action: ActionFinish, Guidance: "routing was unavailable; answer from the collected results"}, nil
	}

	return p.parse(completion), nil
}

// buildMessages assembles the planner conversation: profile context,
// session history, prior agent results, and the user's message.
func (p *LLMPlanner) buildMessages(userMessage string, bundle *chat.ContextBundle, sofar []chat.AgentInvocation) []ai.Message {
	var system strings.Builder
	system.WriteString(`You are the orchestrator of a multi-agent financial assistant.
Decide which specialist, if any, must be consulted to answer the user.
Call at most one consult tool per decision, or call finish when you can
answer from what is already known. For greetings and small talk, finish
directly with the reply in the instructions argument.

`)
	fmt.Fprintf(&system, "Today is %s.\n", bundle.AssembledAt.Format("Monday 2006-01-02"))
	system.WriteString("\nUser context:\n")
	system.WriteString(bundle.Digest)

	if len(sofar) > 0 {
		system.WriteString("\nSpecialists already consulted this turn (never consult the same one twice):\n")
		for _, inv := range sofar {
			if inv.Succeeded() {
				fmt.Fprintf(&system, "- %s answered: %s\n", inv.Agent, truncate(inv.Answer, 600))
			} else {
				fmt.Fprintf(&system, "- %s failed (%s)\n", inv.Agent, inv.FailureKind)
			}
		}
	}

	msgs := []ai.Message{{Role: ai.RoleSystem, Content: system.String()}}

	for _, m := range bundle.History {
		role := ai.RoleUser
		if m.Role == chat.RoleAssistant {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.Message{Role: role, Content: m.Text})
	}

	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: userMessage})
	return msgs
}

// buildTools defines one consult tool per not-yet-used agent kind plus finish
func (p *LLMPlanner) buildTools(sofar []chat.AgentInvocation) []ai.ToolDefinition {
	used := make(map[string]bool, len(sofar))
	for _, inv := range sofar {
		used[inv.Agent] = true
	}

	var tools []ai.ToolDefinition
	for _, kind := range agents.KnownKinds() {
		if used[string(kind)] {
			continue
		}
		tools = append(tools, ai.ToolDefinition{
			Name:        toolNameFor(kind),
			Description: agentToolDescriptions[kind],
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"question": map[string]interface{}{
						"type":        "string",
						"description": "The specific question for this specialist",
					},
				},
				"required": []string{"question"},
			},
		})
	}

	tools = append(tools, ai.ToolDefinition{
		Name:        finishToolName,
		Description: "Finish the turn and synthesize the final answer from the collected results",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"instructions": map[string]interface{}{
					"type":        "string",
					"description": "How to compose the final answer, or the answer itself for direct replies",
				},
			},
		},
	})

	return tools
}

// parse applies the strict output contract to whatever the model returned
func (p *LLMPlanner) parse(completion *ai.Completion) Decision {
	// No tool calls: the model answered directly, which means finish
	if len(completion.ToolCalls) == 0 {
		return Decision{Action: ActionFinish, Guidance: completion.Content}
	}

	// First valid tool call wins; everything else is ignored to keep
	// behavior deterministic when the model names several agents
	for _, tc := range completion.ToolCalls {
		if tc.Name == finishToolName {
			var args struct {
				Instructions string `json:"instructions"`
			}
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			return Decision{Action: ActionFinish, Guidance: args.Instructions}
		}

		kind, ok := kindForTool(tc.Name)
		if !ok {
			p.log.Warnf("Planner named unknown tool %q, ignoring", tc.Name)
			continue
		}

		var args struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil || strings.TrimSpace(args.Question) == "" {
			p.log.Warnf("Planner produced malformed arguments for %s, ignoring", tc.Name)
			continue
		}

		return Decision{Action: ActionInvoke, Agent: kind, Question: args.Question}
	}

	// Every tool call was unrecognized or malformed
	return Decision{Action: ActionFinish, Guidance: "routing failed; answer from the collected results"}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
