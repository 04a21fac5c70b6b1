package app

import (
	"context"
	"fmt"

	"github.com/rayhanf/livetrack-companion/internal/trigger"
)

// RulesUsecase defines the trigger rule management use case.
type RulesUsecase interface {
	// ListKeywordRules returns keyword rules in evaluation order.
	ListKeywordRules(ctx context.Context) ([]trigger.KeywordRule, error)

	// CreateKeywordRule validates and stores a new keyword rule.
	CreateKeywordRule(ctx context.Context, req KeywordRuleRequest) (trigger.KeywordRule, error)

	// SetKeywordRuleActive enables or disables a keyword rule.
	SetKeywordRuleActive(ctx context.Context, id int64, active bool) error

	// DeleteKeywordRule removes a keyword rule.
	DeleteKeywordRule(ctx context.Context, id int64) error

	// ListGiftActions returns gift actions in evaluation order.
	ListGiftActions(ctx context.Context) ([]trigger.GiftAction, error)

	// CreateGiftAction validates and stores a new gift action.
	CreateGiftAction(ctx context.Context, req GiftActionRequest) (trigger.GiftAction, error)

	// DeleteGiftAction removes a gift action.
	DeleteGiftAction(ctx context.Context, id int64) error
}

// KeywordRuleRequest contains the fields for creating a keyword rule.
type KeywordRuleRequest struct {
	Keyword         string `json:"keyword"`
	MatchType       string `json:"match_type"`
	ActionType      string `json:"action_type"`
	DeviceTarget    string `json:"device_target"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

// GiftActionRequest contains the fields for creating a gift action.
type GiftActionRequest struct {
	GiftName     string `json:"gift_name"`
	ActionType   string `json:"action_type"`
	DeviceTarget string `json:"device_target"`
}

// RuleStore defines store operations needed by RulesService.
type RuleStore interface {
	CreateKeywordRule(ctx context.Context, r trigger.KeywordRule) (trigger.KeywordRule, error)
	ListKeywordRules(ctx context.Context, accountID int64) ([]trigger.KeywordRule, error)
	SetKeywordRuleActive(ctx context.Context, id int64, active bool) error
	DeleteKeywordRule(ctx context.Context, id int64) error
	CreateGiftAction(ctx context.Context, g trigger.GiftAction) (trigger.GiftAction, error)
	ListGiftActions(ctx context.Context, accountID int64) ([]trigger.GiftAction, error)
	DeleteGiftAction(ctx context.Context, id int64) error
}

// RuleReloader is notified after a rule mutation so the running pipeline
// picks up the change without a restart.
type RuleReloader interface {
	ReloadRules(ctx context.Context) error
}

// RulesService implements RulesUsecase.
type RulesService struct {
	Store     RuleStore
	AccountID int64
	Reloader  RuleReloader
}

// ListKeywordRules returns keyword rules for the configured account.
func (s *RulesService) ListKeywordRules(ctx context.Context) ([]trigger.KeywordRule, error) {
	return s.Store.ListKeywordRules(ctx, s.AccountID)
}

// CreateKeywordRule validates and stores a new keyword rule.
func (s *RulesService) CreateKeywordRule(ctx context.Context, req KeywordRuleRequest) (trigger.KeywordRule, error) {
	if req.Keyword == "" {
		return trigger.KeywordRule{}, fmt.Errorf("keyword must not be empty")
	}
	switch req.MatchType {
	case "", trigger.MatchExact, trigger.MatchContains:
	default:
		return trigger.KeywordRule{}, fmt.Errorf("invalid match_type: %s", req.MatchType)
	}
	if req.ActionType == "" || req.DeviceTarget == "" {
		return trigger.KeywordRule{}, fmt.Errorf("action_type and device_target must not be empty")
	}
	if req.CooldownSeconds < 0 {
		return trigger.KeywordRule{}, fmt.Errorf("cooldown_seconds must be non-negative")
	}

	rule, err := s.Store.CreateKeywordRule(ctx, trigger.KeywordRule{
		AccountID:       s.AccountID,
		Keyword:         req.Keyword,
		MatchType:       req.MatchType,
		ActionType:      req.ActionType,
		DeviceTarget:    req.DeviceTarget,
		CooldownSeconds: req.CooldownSeconds,
		IsActive:        true,
	})
	if err != nil {
		return trigger.KeywordRule{}, err
	}
	s.reload(ctx)
	return rule, nil
}

// SetKeywordRuleActive enables or disables a keyword rule.
func (s *RulesService) SetKeywordRuleActive(ctx context.Context, id int64, active bool) error {
	if err := s.Store.SetKeywordRuleActive(ctx, id, active); err != nil {
		return err
	}
	s.reload(ctx)
	return nil
}

// DeleteKeywordRule removes a keyword rule.
func (s *RulesService) DeleteKeywordRule(ctx context.Context, id int64) error {
	if err := s.Store.DeleteKeywordRule(ctx, id); err != nil {
		return err
	}
	s.reload(ctx)
	return nil
}

// ListGiftActions returns gift actions for the configured account.
func (s *RulesService) ListGiftActions(ctx context.Context) ([]trigger.GiftAction, error) {
	return s.Store.ListGiftActions(ctx, s.AccountID)
}

// CreateGiftAction validates and stores a new gift action.
func (s *RulesService) CreateGiftAction(ctx context.Context, req GiftActionRequest) (trigger.GiftAction, error) {
	if req.GiftName == "" {
		return trigger.GiftAction{}, fmt.Errorf("gift_name must not be empty")
	}
	if req.ActionType == "" || req.DeviceTarget == "" {
		return trigger.GiftAction{}, fmt.Errorf("action_type and device_target must not be empty")
	}

	action, err := s.Store.CreateGiftAction(ctx, trigger.GiftAction{
		AccountID:    s.AccountID,
		GiftName:     req.GiftName,
		ActionType:   req.ActionType,
		DeviceTarget: req.DeviceTarget,
		IsActive:     true,
	})
	if err != nil {
		return trigger.GiftAction{}, err
	}
	s.reload(ctx)
	return action, nil
}

// DeleteGiftAction removes a gift action.
func (s *RulesService) DeleteGiftAction(ctx context.Context, id int64) error {
	if err := s.Store.DeleteGiftAction(ctx, id); err != nil {
		return err
	}
	s.reload(ctx)
	return nil
}

// reload asks the pipeline to re-read rules. Best-effort: the store is
// the source of truth and the next restart converges anyway.
func (s *RulesService) reload(ctx context.Context) {
	if s.Reloader == nil {
		return
	}
	_ = s.Reloader.ReloadRules(ctx)
}
