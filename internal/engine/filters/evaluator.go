package filters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/platform/metrics"
	"relaydesk/internal/platform/models"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNoClassifier     = errors.New("no classifier configured")
	errWorkflowGone     = errors.New("workflow not found")
	errWorkflowInactive = errors.New("workflow inactive")
)

// RuleStore returns the active rules of a tenant that target a group, in no
// particular order.
type RuleStore interface {
	ListActiveRulesForGroup(ctx context.Context, tenantID, groupID string) ([]*models.Rule, error)
}

// WorkflowStore returns nil, nil for unknown workflows.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error)
}

type DeliveryLog interface {
	Append(ctx context.Context, entry *models.DeliveryLog) error
	AdvanceStatus(ctx context.Context, tenantID, id, status string, retries int, errMsg string) error
}

// Classifier answers whether text matches a natural-language prompt. It may
// be slow or fail.
type Classifier interface {
	Classify(ctx context.Context, prompt, text string) (bool, error)
}

// WorkflowNotifier tells a workflow that one of its rules matched.
type WorkflowNotifier interface {
	Notify(ctx context.Context, workflow *models.Workflow, payload interface{}) error
}

// Recorder is told about entities the evaluator creates.
type Recorder interface {
	Record(ctx context.Context, tenantID, entityType, event, entityID string, payload interface{})
}

type Deps struct {
	Rules      RuleStore
	Workflows  WorkflowStore
	Logs       DeliveryLog
	Classifier Classifier
	Notifier   WorkflowNotifier
	Recorder   Recorder
}

type Options struct {
	ClassifierTimeout time.Duration
	WorkflowTimeout   time.Duration
}

type Evaluator struct {
	deps Deps
	opts Options
}

func NewEvaluator(deps Deps, opts Options) *Evaluator {
	if opts.ClassifierTimeout <= 0 {
		opts.ClassifierTimeout = 5 * time.Second
	}
	if opts.WorkflowTimeout <= 0 {
		opts.WorkflowTimeout = 10 * time.Second
	}
	return &Evaluator{deps: deps, opts: opts}
}

// Evaluate runs the tenant's rules for msg's group in priority order and
// stops at the first match.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID string, msg *Message) (*MatchResult, error) {
	if msg == nil || strings.TrimSpace(msg.GroupID) == "" {
		return nil, fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	metrics.Inc(metrics.Evaluations)

	rules, err := e.deps.Rules.ListActiveRulesForGroup(ctx, tenantID, msg.GroupID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	for _, rule := range orderRules(rules, msg.GroupID) {
		pred, err := Compile(rule)
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Str("rule_id", rule.ID).Msg("skipping rule that does not compile")
			continue
		}

		ok, err := e.matches(ctx, pred, msg)
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Str("rule_id", rule.ID).Msg("rule predicate failed, treating as no match")
			continue
		}
		if ok {
			metrics.Inc(metrics.Matches)
			return e.onMatch(ctx, tenantID, rule, msg), nil
		}
	}

	result := NoMatch
	return &result, nil
}

// orderRules drops rules that are inactive or do not target groupID and
// sorts the rest: priority descending, then oldest first.
func orderRules(rules []*models.Rule, groupID string) []*models.Rule {
	out := make([]*models.Rule, 0, len(rules))
	for _, r := range rules {
		if r != nil && r.Active && r.TargetsGroup(groupID) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.Seq < b.Seq
	})
	return out
}

func (e *Evaluator) matches(ctx context.Context, pred Predicate, msg *Message) (bool, error) {
	switch p := pred.(type) {
	case KeywordRule:
		return p.Needle != "" && strings.Contains(strings.ToLower(msg.Text), p.Needle), nil
	case RegexRule:
		return p.Expr.MatchString(msg.Text), nil
	case SenderRoleRule:
		return msg.SenderRole == p.Role, nil
	case MessageTypeRule:
		return msg.Type == p.Type, nil
	case AIClassificationRule:
		if e.deps.Classifier == nil {
			return false, ErrNoClassifier
		}
		cctx, cancel := context.WithTimeout(ctx, e.opts.ClassifierTimeout)
		defer cancel()
		ok, err := e.deps.Classifier.Classify(cctx, p.Prompt, msg.Text)
		if err != nil {
			metrics.Inc(metrics.ClassifierErrors)
			return false, fmt.Errorf("classify: %w", err)
		}
		return ok, nil
	default:
		return false, fmt.Errorf("unhandled predicate %T", pred)
	}
}

type matchInput struct {
	RuleID            string   `json:"rule_id"`
	RuleName          string   `json:"rule_name"`
	SupportContactIDs []string `json:"support_contact_ids"`
	Message           *Message `json:"message"`
}

// onMatch records the match as a pending delivery, notifies the bound
// workflow and settles the delivery. Bookkeeping failures are logged; the
// match itself stands.
func (e *Evaluator) onMatch(ctx context.Context, tenantID string, rule *models.Rule, msg *Message) *MatchResult {
	result := &MatchResult{
		Matched:           true,
		Rule:              rule,
		SupportContactIDs: rule.SupportContactIDs,
	}

	input := matchInput{RuleID: rule.ID, RuleName: rule.Name, SupportContactIDs: rule.SupportContactIDs, Message: msg}
	data, _ := json.Marshal(input)

	entry := &models.DeliveryLog{
		TenantID:    tenantID,
		RuleID:      rule.ID,
		ExecutionID: "exec_" + uuid.New().String(),
		NodeName:    "filter " + rule.Name,
		InputData:   data,
		Status:      models.StatusPending,
	}
	if rule.WorkflowID != nil {
		entry.WorkflowID = *rule.WorkflowID
	}

	// The delivery outcome is recorded even if the caller goes away.
	bg := context.WithoutCancel(ctx)

	if err := e.deps.Logs.Append(bg, entry); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Str("rule_id", rule.ID).Msg("failed to append delivery log")
		return result
	}
	result.DeliveryLogID = entry.ID

	status, errMsg := models.StatusSuccess, ""
	if rule.WorkflowID != nil {
		wf, err := e.notifyWorkflow(bg, tenantID, *rule.WorkflowID, input)
		result.Workflow = wf
		if err != nil {
			status, errMsg = models.StatusError, err.Error()
			log.Warn().Err(err).Str("tenant_id", tenantID).Str("rule_id", rule.ID).Str("workflow_id", *rule.WorkflowID).
				Msg("workflow notification failed")
		}
	}

	if err := e.deps.Logs.AdvanceStatus(bg, tenantID, entry.ID, status, 0, errMsg); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Str("delivery_id", entry.ID).Msg("failed to settle delivery log")
	} else {
		entry.Status = status
		entry.ErrorMessage = errMsg
	}
	result.DeliveryStatus = entry.Status

	if e.deps.Recorder != nil {
		e.deps.Recorder.Record(bg, tenantID, models.EntityLog, models.EventCreate, entry.ID, entry)
	}

	return result
}

func (e *Evaluator) notifyWorkflow(ctx context.Context, tenantID, workflowID string, payload interface{}) (*models.Workflow, error) {
	wf, err := e.deps.Workflows.GetWorkflow(ctx, tenantID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if wf == nil {
		return nil, errWorkflowGone
	}
	if !wf.Active {
		return wf, errWorkflowInactive
	}
	if e.deps.Notifier == nil {
		return wf, nil
	}

	nctx, cancel := context.WithTimeout(ctx, e.opts.WorkflowTimeout)
	defer cancel()
	return wf, e.deps.Notifier.Notify(nctx, wf, payload)
}
