package chat

import (
	"fmt"
	"sort"
	"strings"

	"bellhop/internal/profile"
	"bellhop/pkg/llm"
)

const assistantSystemPrompt = `You are Bellhop, a friendly onboarding assistant helping a business owner set up their account.

Key objectives:
1. Learn about the business naturally through conversation
2. Stay focused on the current topic until its information is collected
3. Ask one question at a time
4. Confirm important details back to the owner

Keep responses concise and warm. Never mention that you are following a script.`

const crawlFailureReply = "I had trouble accessing that website. Could you verify the URL, or just tell me about your business directly?"

// buildPromptMessages assembles the system context for a reply: the standing
// persona, the current guidance focus, and the profile collected so far,
// followed by the conversation transcript.
func (e *Engine) buildPromptMessages(state TurnState) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: assistantSystemPrompt}}
	if ctx := e.guidanceContext(state); ctx != "" {
		messages = append(messages, llm.Message{Role: "system", Content: ctx})
	}
	return append(messages, state.Messages...)
}

func (e *Engine) guidanceContext(state TurnState) string {
	var b strings.Builder

	if state.Guidance.Done {
		b.WriteString("Every onboarding topic is covered. Wrap up: summarize what you learned and thank the owner.\n")
	} else if rule, ok := e.scheduler.CurrentRule(state.Guidance); ok {
		fmt.Fprintf(&b, "Current focus: %s\n", rule.Category)
		fmt.Fprintf(&b, "Required information: %s\n", strings.Join(rule.RequiredInfo, ", "))
		if missing := e.scheduler.MissingInfo(state.Guidance, state.Profile); len(missing) > 0 {
			fmt.Fprintf(&b, "Still missing: %s\n", strings.Join(missing, ", "))
		}
		if len(rule.FollowUpQuestions) > 0 {
			fmt.Fprintf(&b, "Follow-up questions you may use: %s\n", strings.Join(rule.FollowUpQuestions, " / "))
		}
	}

	if summary := profileSummary(state); summary != "" {
		b.WriteString("\nWhat we know so far:\n")
		b.WriteString(summary)
	}
	return strings.TrimSpace(b.String())
}

// profileSummary renders the collected profile as bullet lines, sorted by
// field name so the prompt is stable across turns.
func profileSummary(state TurnState) string {
	fields := make([]string, 0, len(state.Profile.Values))
	for name := range state.Profile.Values {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, name := range fields {
		rendered := renderValue(state.Profile.Values[name])
		if rendered == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (confidence %.1f)\n", name, rendered, state.Profile.Confidence[name])
	}
	return b.String()
}

func renderValue(v profile.Value) string {
	switch {
	case v.Scalar != "":
		return v.Scalar
	case len(v.List) > 0:
		return strings.Join(v.List, ", ")
	case len(v.Map) > 0:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+": "+v.Map[k])
		}
		return strings.Join(pairs, ", ")
	}
	return ""
}
