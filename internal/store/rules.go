package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/trigger"
)

// CreateKeywordRule inserts a keyword rule and returns it with its ID set.
func (s *Store) CreateKeywordRule(ctx context.Context, r trigger.KeywordRule) (trigger.KeywordRule, error) {
	if r.Keyword == "" {
		return trigger.KeywordRule{}, fmt.Errorf("%w: keyword is required", ErrInvalidLog)
	}
	if r.MatchType == "" {
		r.MatchType = trigger.MatchContains
	}
	if r.CooldownSeconds <= 0 {
		r.CooldownSeconds = int(trigger.DefaultCooldown.Seconds())
	}

	const query = `
	INSERT INTO keyword_actions (account_id, keyword, match_type, action_type, device_target, cooldown_seconds, is_active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		r.AccountID, r.Keyword, r.MatchType, r.ActionType, r.DeviceTarget,
		r.CooldownSeconds, boolToInt(r.IsActive), time.Now().UTC().Format(TimeFormat),
	)
	if err != nil {
		return trigger.KeywordRule{}, fmt.Errorf("create keyword rule: %w", err)
	}
	if r.ID, err = result.LastInsertId(); err != nil {
		return trigger.KeywordRule{}, fmt.Errorf("last insert id: %w", err)
	}
	return r, nil
}

// ListKeywordRules returns keyword rules for an account in creation
// order, the order the trigger engine evaluates them in.
// accountID 0 means all accounts.
func (s *Store) ListKeywordRules(ctx context.Context, accountID int64) ([]trigger.KeywordRule, error) {
	query := `
	SELECT id, account_id, keyword, match_type, action_type, device_target, cooldown_seconds, is_active
	FROM keyword_actions`
	args := []any{}
	if accountID > 0 {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list keyword rules: %w", err)
	}
	defer rows.Close()

	var rules []trigger.KeywordRule
	for rows.Next() {
		var (
			r      trigger.KeywordRule
			active int
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Keyword, &r.MatchType,
			&r.ActionType, &r.DeviceTarget, &r.CooldownSeconds, &active); err != nil {
			return nil, fmt.Errorf("scan keyword rule: %w", err)
		}
		r.IsActive = active != 0
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SetKeywordRuleActive toggles a rule without deleting its history.
func (s *Store) SetKeywordRuleActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE keyword_actions SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set keyword rule active: %w", err)
	}
	return requireAffected(result.RowsAffected())
}

// DeleteKeywordRule removes a keyword rule.
func (s *Store) DeleteKeywordRule(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM keyword_actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete keyword rule: %w", err)
	}
	return requireAffected(result.RowsAffected())
}

// CreateGiftAction inserts a gift action and returns it with its ID set.
func (s *Store) CreateGiftAction(ctx context.Context, g trigger.GiftAction) (trigger.GiftAction, error) {
	if g.GiftName == "" {
		return trigger.GiftAction{}, fmt.Errorf("%w: gift_name is required", ErrInvalidLog)
	}

	const query = `
	INSERT INTO gift_actions (account_id, gift_name, action_type, device_target, is_active, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		g.AccountID, g.GiftName, g.ActionType, g.DeviceTarget,
		boolToInt(g.IsActive), time.Now().UTC().Format(TimeFormat),
	)
	if err != nil {
		return trigger.GiftAction{}, fmt.Errorf("create gift action: %w", err)
	}
	if g.ID, err = result.LastInsertId(); err != nil {
		return trigger.GiftAction{}, fmt.Errorf("last insert id: %w", err)
	}
	return g, nil
}

// ListGiftActions returns gift actions for an account in creation order.
// accountID 0 means all accounts.
func (s *Store) ListGiftActions(ctx context.Context, accountID int64) ([]trigger.GiftAction, error) {
	query := `
	SELECT id, account_id, gift_name, action_type, device_target, is_active
	FROM gift_actions`
	args := []any{}
	if accountID > 0 {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list gift actions: %w", err)
	}
	defer rows.Close()

	var actions []trigger.GiftAction
	for rows.Next() {
		var (
			g      trigger.GiftAction
			active int
		)
		if err := rows.Scan(&g.ID, &g.AccountID, &g.GiftName, &g.ActionType,
			&g.DeviceTarget, &active); err != nil {
			return nil, fmt.Errorf("scan gift action: %w", err)
		}
		g.IsActive = active != 0
		actions = append(actions, g)
	}
	return actions, rows.Err()
}

// DeleteGiftAction removes a gift action.
func (s *Store) DeleteGiftAction(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM gift_actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete gift action: %w", err)
	}
	return requireAffected(result.RowsAffected())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
