package jobs

import (
	"errors"
	"fmt"
	"strings"
)

var ErrPromptNotFound = errors.New("prompt not found")

const (
	PromptSearchAssistant = "job_search_assistant"
	PromptAnalyzeMarket   = "analyze_job_market"
)

type Message struct {
	Role string
	Text string
}

type Prompt struct {
	Description string
	Messages    []Message
}

type PromptArgs struct {
	Query  string   `validate:"max=500"`
	Skills []string `validate:"max=20,dive,max=100"`
}

// GetPrompt builds one of the canned conversation starters.
func GetPrompt(name string, args PromptArgs) (Prompt, error) {
	if err := validate.Struct(&args); err != nil {
		return Prompt{}, fmt.Errorf("invalid prompt arguments: %w", err)
	}

	switch name {
	case PromptSearchAssistant:
		if err := validate.Var(args.Query, "required"); err != nil {
			return Prompt{}, fmt.Errorf("invalid prompt arguments: query: %w", err)
		}
		skills := ""
		if len(args.Skills) > 0 {
			skills = "Required skills: " + strings.Join(args.Skills, ", ")
		}
		return Prompt{
			Description: "Job search assistance for: " + args.Query,
			Messages: []Message{
				{Role: "assistant", Text: "I'm your Nostr job search assistant. I'll help you find relevant job listings on the decentralized Nostr network."},
				{Role: "user", Text: fmt.Sprintf("Search Query: %s\n%s\n\nPlease help me find relevant job listings and provide recommendations based on this query.", args.Query, skills)},
			},
		}, nil
	case PromptAnalyzeMarket:
		return Prompt{
			Description: "Analysis of the Nostr job market",
			Messages: []Message{
				{Role: "assistant", Text: "I'll analyze the current job market on Nostr and provide insights."},
				{Role: "user", Text: "Please analyze the job listings available on Nostr. What are the trending skills? Which companies are hiring? What's the salary range for different positions?"},
			},
		}, nil
	default:
		return Prompt{}, fmt.Errorf("%w: %s", ErrPromptNotFound, name)
	}
}

func (p Prompt) String() string {
	var b strings.Builder
	b.WriteString(p.Description)
	for _, m := range p.Messages {
		fmt.Fprintf(&b, "\n\n[%s]\n%s", m.Role, m.Text)
	}
	return b.String()
}
