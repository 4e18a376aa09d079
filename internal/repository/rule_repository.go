package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/venuekit/seat-inventory/internal/model"
)

// RuleRepo provides data access to the pricing_rules table.  Rules are
// authored by external pricing configuration; this service only creates
// them on behalf of admins and reads the active set during repricing.
type RuleRepo struct {
	db *sql.DB
}

// NewRuleRepo returns a new RuleRepo bound to the provided database.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

// Create inserts a pricing rule and populates its generated ID.  Params are
// stored as a JSON document.
func (r *RuleRepo) Create(ctx context.Context, rule *model.DynamicPricingRule) error {
	params, err := json.Marshal(rule.Params)
	if err != nil {
		return err
	}
	const q = `INSERT INTO pricing_rules (strategy, scope, scope_ref, params, is_active)
	           VALUES (?, ?, ?, ?, ?)`
	var scopeRef interface{}
	if rule.ScopeRef != nil {
		scopeRef = *rule.ScopeRef
	}
	res, err := r.db.ExecContext(ctx, q, rule.Strategy, rule.Scope, scopeRef, string(params), rule.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rule.ID = id
	return nil
}

// ListActiveByScope returns the active rules matching a repricing request.
// Global-scope requests match only global rules; event and section requests
// additionally filter on scope_ref when the rule carries one (a rule with a
// NULL scope_ref applies to every ref of its scope).
func (r *RuleRepo) ListActiveByScope(ctx context.Context, scope string, scopeRef *string) ([]model.DynamicPricingRule, error) {
	query := `SELECT id, strategy, scope, scope_ref, params, is_active
	          FROM pricing_rules
	          WHERE is_active = TRUE AND scope = ?`
	args := []interface{}{scope}
	if scope != model.RuleScopeGlobal && scopeRef != nil {
		query += ` AND (scope_ref IS NULL OR scope_ref = ?)`
		args = append(args, *scopeRef)
	}
	query += ` ORDER BY id`
	return r.queryRules(ctx, query, args...)
}

// ListAll returns every rule, active or not, for admin listing.
func (r *RuleRepo) ListAll(ctx context.Context) ([]model.DynamicPricingRule, error) {
	const q = `SELECT id, strategy, scope, scope_ref, params, is_active
	           FROM pricing_rules ORDER BY id`
	return r.queryRules(ctx, q)
}

func (r *RuleRepo) queryRules(ctx context.Context, query string, args ...interface{}) ([]model.DynamicPricingRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []model.DynamicPricingRule
	for rows.Next() {
		var rule model.DynamicPricingRule
		var scopeRef sql.NullString
		var params sql.NullString
		if err := rows.Scan(&rule.ID, &rule.Strategy, &rule.Scope, &scopeRef, &params, &rule.IsActive); err != nil {
			return nil, err
		}
		if scopeRef.Valid {
			v := scopeRef.String
			rule.ScopeRef = &v
		}
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &rule.Params); err != nil {
				return nil, err
			}
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}
