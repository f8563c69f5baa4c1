package guidance

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Rule is one onboarding topic: the fields it needs filled and the prompt
// used to ask for them. Rules are static configuration, ordered by ascending
// priority, and never mutated by the scheduler.
type Rule struct {
	ID                string   `json:"id"`
	Priority          int      `json:"priority"`
	Category          string   `json:"category"`
	RequiredInfo      []string `json:"required_info"`
	PromptTemplate    string   `json:"prompt_template"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
}

// DefaultRules is the built-in onboarding flow, used when no rule file is
// configured.
var DefaultRules = []Rule{
	{
		ID:           "initial_greeting",
		Priority:     1,
		Category:     "business",
		RequiredInfo: []string{"businessName", "businessDescription"},
		PromptTemplate: "Hi! I'm your onboarding assistant. I'll help you set up your account and customize it for your business. " +
			"To get started, could you tell me your business name and a brief description of what you do?",
		FollowUpQuestions: []string{
			"What type of services do you offer?",
			"How long have you been in business?",
		},
	},
	{
		ID:           "service_details",
		Priority:     2,
		Category:     "service",
		RequiredInfo: []string{"services", "location"},
		PromptTemplate: "Could you tell me about your main services and where you operate? " +
			"If you shared your website I may have picked some of this up already, so feel free to just confirm or correct.",
		FollowUpQuestions: []string{
			"Do you work with clients remotely or in-person?",
		},
	},
	{
		ID:           "audience",
		Priority:     3,
		Category:     "marketing",
		RequiredInfo: []string{"targetMarket", "yearsInBusiness"},
		PromptTemplate: "Who are your typical clients, and how long have you been in business? " +
			"This helps me tailor the rest of the setup to your experience level and audience.",
	},
	{
		ID:           "challenges",
		Priority:     4,
		Category:     "client",
		RequiredInfo: []string{"painPoints", "goals"},
		PromptTemplate: "What's the biggest challenge in running your business day to day, " +
			"and what would you most like to improve this year?",
		FollowUpQuestions: []string{
			"How do you currently handle client contracts and payments?",
		},
	},
	{
		ID:             "online_presence",
		Priority:       5,
		Category:       "marketing",
		RequiredInfo:   []string{"socialMedia"},
		PromptTemplate: "Almost done! Where can clients find you online? Share any social media profiles you use for the business.",
	},
}

// WrapUpPrompt is emitted once every rule's required fields are satisfied.
const WrapUpPrompt = "That's everything I needed! Your profile is all set up. " +
	"Is there anything you'd like to review or change before we finish?"

// LoadRules reads a rule list from a JSON file and returns it sorted by
// ascending priority. An empty path returns the built-in default flow.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guidance rules: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse guidance rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("guidance rule file %s contains no rules", path)
	}
	for i, rule := range rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("guidance rule %d has no id", i)
		}
		if len(rule.RequiredInfo) == 0 {
			return nil, fmt.Errorf("guidance rule %q requires no fields", rule.ID)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
	return rules, nil
}
