package filters

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"relaydesk/internal/platform/models"
)

var ErrInvalidRule = errors.New("invalid rule")

// Predicate is a compiled rule. The set of implementations is closed:
// KeywordRule, RegexRule, SenderRoleRule, MessageTypeRule and
// AIClassificationRule.
type Predicate interface {
	kind() string
}

type KeywordRule struct {
	// Needle is the lowercased pattern.
	Needle string
}

type RegexRule struct {
	Expr *regexp.Regexp
}

type SenderRoleRule struct {
	Role string
}

type MessageTypeRule struct {
	Type string
}

type AIClassificationRule struct {
	Prompt string
}

func (KeywordRule) kind() string          { return models.RuleKeyword }
func (RegexRule) kind() string            { return models.RuleRegex }
func (SenderRoleRule) kind() string       { return models.RuleSenderRole }
func (MessageTypeRule) kind() string      { return models.RuleMessageType }
func (AIClassificationRule) kind() string { return models.RuleAIClassification }

// Compile turns a stored rule into its predicate variant. Regex patterns use
// the RE2 syntax of the regexp package, the same dialect ValidateRule checks.
func Compile(rule *models.Rule) (Predicate, error) {
	switch rule.Kind {
	case models.RuleKeyword:
		return KeywordRule{Needle: strings.ToLower(rule.Pattern)}, nil
	case models.RuleRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: regex: %v", ErrInvalidRule, err)
		}
		return RegexRule{Expr: re}, nil
	case models.RuleSenderRole:
		return SenderRoleRule{Role: rule.Pattern}, nil
	case models.RuleMessageType:
		return MessageTypeRule{Type: rule.Pattern}, nil
	case models.RuleAIClassification:
		prompt := rule.AIPrompt
		if prompt == "" {
			prompt = rule.Pattern
		}
		return AIClassificationRule{Prompt: prompt}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, rule.Kind)
	}
}

// ValidateRule checks a rule before it is stored.
func ValidateRule(rule *models.Rule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}

	if rule.Kind == models.RuleAIClassification {
		if strings.TrimSpace(rule.AIPrompt) == "" && strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("%w: ai_classification rules need a prompt", ErrInvalidRule)
		}
	} else if rule.Pattern == "" {
		return fmt.Errorf("%w: pattern is required", ErrInvalidRule)
	}

	if _, err := Compile(rule); err != nil {
		return err
	}

	if len(rule.GroupIDs) == 0 {
		return fmt.Errorf("%w: at least one group is required", ErrInvalidRule)
	}
	if len(rule.SupportContactIDs) == 0 {
		return fmt.Errorf("%w: at least one support contact is required", ErrInvalidRule)
	}
	return nil
}
