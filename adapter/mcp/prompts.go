package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for operator workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("triage_escalations").
		Description("Walk through the escalation queue and decide what to do with each conversation.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Escalation Triage",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Help me work through the escalation queue. Please:

1. Read the talentreach://escalations resource
2. For each conversation, load the transcript with the conversation.get tool

For every escalation, summarize:
- Who the candidate is and where the conversation stands
- Why it was escalated
- What the candidate is asking for

Then propose one action per conversation:
- A reply I can send with reply.send
- Handing it back to automation with escalation.resolve
- Leaving it with me for a call

Do not send anything until I confirm.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("draft_reply").
		Description("Draft an operator reply for one conversation.").
		Argument("conversation_id", "Conversation to reply on", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			conversationID := args["conversation_id"]
			if conversationID == "" {
				conversationID = "[conversation id]"
			}

			return &mcp.PromptResult{
				Description: "Reply Draft",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`Load conversation %s with the conversation.get tool and draft a short reply.

Keep it under 80 words, answer the candidate's last message directly and
suggest a next step. If a booking link fits, pick one from talentreach://resources.

Show me the draft first. Send it with reply.send only after I approve.`, conversationID),
						},
					},
				},
			}, nil
		})

	return nil
}
