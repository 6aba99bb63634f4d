package tidy

import (
	"fmt"
	"regexp"
	"strings"

	"tidy-go/internal/model"
)

// RuleBundle is the portable form of the rule store used by export and import.
type RuleBundle struct {
	Rules      []model.Rule             `json:"rules" toml:"rules" yaml:"rules"`
	Defaults   []model.DefaultRule      `json:"defaults" toml:"defaults" yaml:"defaults"`
	Mappings   []model.ExtensionMapping `json:"mappings" toml:"mappings" yaml:"mappings"`
	Exclusions []string                 `json:"exclusions" toml:"exclusions" yaml:"exclusions"`
}

// ValidateRule normalizes rule in place and rejects anything the resolver
// could not act on.
func ValidateRule(rule *model.Rule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("%w: at least one condition is required", ErrInvalidRule)
	}
	for i, c := range rule.Conditions {
		if !validFields[c.Field] {
			return fmt.Errorf("%w: condition %d: unknown field %q", ErrInvalidRule, i+1, c.Field)
		}
		if !validOperators[c.Operator] {
			return fmt.Errorf("%w: condition %d: unknown operator %q", ErrInvalidRule, i+1, c.Operator)
		}
		if c.Operator == OpMatches {
			if _, err := regexp.Compile(c.Value); err != nil {
				return fmt.Errorf("%w: condition %d: %v", ErrInvalidRule, i+1, err)
			}
		}
	}

	switch strings.ToUpper(strings.TrimSpace(rule.ConditionLogic)) {
	case "", "AND":
		rule.ConditionLogic = "AND"
	case "OR":
		rule.ConditionLogic = "OR"
	default:
		return fmt.Errorf("%w: condition logic must be AND or OR, got %q", ErrInvalidRule, rule.ConditionLogic)
	}

	rule.ActionType = strings.ToLower(strings.TrimSpace(rule.ActionType))
	switch rule.ActionType {
	case ActionMove, ActionCopy:
		if strings.TrimSpace(rule.ActionDestination) == "" {
			return fmt.Errorf("%w: %s needs a destination", ErrInvalidRule, rule.ActionType)
		}
	case ActionRename:
		if strings.TrimSpace(rule.ActionRenamePattern) == "" {
			return fmt.Errorf("%w: rename needs a pattern", ErrInvalidRule)
		}
	case ActionDelete:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRule, rule.ActionType)
	}
	return nil
}

// GetRules returns every custom rule in evaluation order.
func (s *Service) GetRules() ([]*model.Rule, error) {
	rules, err := s.database.ListRules()
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return rules, nil
}

// SaveRule validates and stores rule. A zero ID creates a new rule.
func (s *Service) SaveRule(rule *model.Rule) (*model.Rule, error) {
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	if rule.ID != 0 {
		existing, err := s.database.FindRule(rule.ID)
		if err != nil {
			return nil, fmt.Errorf("loading rule %d: %w", rule.ID, err)
		}
		if existing == nil {
			return nil, fmt.Errorf("rule %d: %w", rule.ID, ErrRuleNotFound)
		}
		rule.CreatedAt = existing.CreatedAt
	} else {
		rule.CreatedAt = s.clock.Now()
	}
	rule.UpdatedAt = s.clock.Now()

	saved, err := s.database.SaveRule(rule)
	if err != nil {
		return nil, fmt.Errorf("saving rule %q: %w", rule.Name, err)
	}
	s.logger.Info("rule saved", "id", saved.ID, "name", saved.Name)
	return saved, nil
}

// SetRuleEnabled toggles a custom rule.
func (s *Service) SetRuleEnabled(id int64, enabled bool) (*model.Rule, error) {
	rule, err := s.database.FindRule(id)
	if err != nil {
		return nil, fmt.Errorf("loading rule %d: %w", id, err)
	}
	if rule == nil {
		return nil, fmt.Errorf("rule %d: %w", id, ErrRuleNotFound)
	}
	rule.Enabled = enabled
	return s.SaveRule(rule)
}

// DeleteRule removes a custom rule.
func (s *Service) DeleteRule(id int64) error {
	rule, err := s.database.FindRule(id)
	if err != nil {
		return fmt.Errorf("loading rule %d: %w", id, err)
	}
	if rule == nil {
		return fmt.Errorf("rule %d: %w", id, ErrRuleNotFound)
	}
	if err := s.database.DeleteRule(id); err != nil {
		return fmt.Errorf("deleting rule %d: %w", id, err)
	}
	s.logger.Info("rule deleted", "id", id, "name", rule.Name)
	return nil
}

// GetDefaultRules returns the per-category fallback rules.
func (s *Service) GetDefaultRules() ([]*model.DefaultRule, error) {
	rules, err := s.database.ListDefaultRules()
	if err != nil {
		return nil, fmt.Errorf("listing default rules: %w", err)
	}
	return rules, nil
}

// SaveDefaultRule updates the fallback rule of rule.Category.
func (s *Service) SaveDefaultRule(rule *model.DefaultRule) (*model.DefaultRule, error) {
	if !rule.Category.IsValid() {
		return nil, fmt.Errorf("category %q: %w", rule.Category, ErrUnknownCategory)
	}
	rule.Destination = strings.TrimSpace(rule.Destination)
	saved, err := s.database.UpdateDefaultRule(rule)
	if err != nil {
		return nil, fmt.Errorf("saving default rule %s: %w", rule.Category, err)
	}
	s.logger.Info("default rule saved", "category", saved.Category, "enabled", saved.Enabled, "destination", saved.Destination)
	return saved, nil
}

// GetExtensionMappings returns the user overlays of the extension table.
func (s *Service) GetExtensionMappings() ([]*model.ExtensionMapping, error) {
	mappings, err := s.database.ListExtensionMappings()
	if err != nil {
		return nil, fmt.Errorf("listing extension mappings: %w", err)
	}
	return mappings, nil
}

// SaveExtensionMapping maps an extension to a category, replacing any
// previous mapping of the same extension.
func (s *Service) SaveExtensionMapping(extension string, category model.Category) (*model.ExtensionMapping, error) {
	ext := NormalizeExtension(extension)
	if ext == "" {
		return nil, fmt.Errorf("extension is required")
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("category %q: %w", category, ErrUnknownCategory)
	}
	mapping := &model.ExtensionMapping{Extension: ext, Category: category}
	if err := s.database.SaveExtensionMapping(mapping); err != nil {
		return nil, fmt.Errorf("saving mapping %s: %w", ext, err)
	}
	return mapping, nil
}

// DeleteExtensionMapping drops the overlay for extension.
func (s *Service) DeleteExtensionMapping(extension string) error {
	ext := NormalizeExtension(extension)
	if err := s.database.DeleteExtensionMapping(ext); err != nil {
		return fmt.Errorf("deleting mapping %s: %w", ext, err)
	}
	return nil
}

// GetExclusions returns the stored exclusion patterns.
func (s *Service) GetExclusions() ([]*model.Exclusion, error) {
	exclusions, err := s.database.ListExclusions()
	if err != nil {
		return nil, fmt.Errorf("listing exclusions: %w", err)
	}
	return exclusions, nil
}

// AddExclusion stores a new exclusion glob.
func (s *Service) AddExclusion(pattern string) (*model.Exclusion, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	exclusion, err := s.database.CreateExclusion(pattern)
	if err != nil {
		return nil, fmt.Errorf("adding exclusion %q: %w", pattern, err)
	}
	return exclusion, nil
}

// DeleteExclusion removes a stored exclusion.
func (s *Service) DeleteExclusion(id int64) error {
	if err := s.database.DeleteExclusion(id); err != nil {
		return fmt.Errorf("deleting exclusion %d: %w", id, err)
	}
	return nil
}

// ExportRules collects the whole rule store into a bundle.
func (s *Service) ExportRules() (*RuleBundle, error) {
	bundle := &RuleBundle{}
	rules, err := s.GetRules()
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		cp := *r
		cp.ID = 0
		bundle.Rules = append(bundle.Rules, cp)
	}
	defaults, err := s.GetDefaultRules()
	if err != nil {
		return nil, err
	}
	for _, d := range defaults {
		bundle.Defaults = append(bundle.Defaults, *d)
	}
	mappings, err := s.GetExtensionMappings()
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		bundle.Mappings = append(bundle.Mappings, *m)
	}
	exclusions, err := s.GetExclusions()
	if err != nil {
		return nil, err
	}
	for _, e := range exclusions {
		bundle.Exclusions = append(bundle.Exclusions, e.Pattern)
	}
	return bundle, nil
}

// ImportRules adds the bundle's rules as new rules and applies its defaults,
// mappings and exclusions. With replace set the existing custom rules are
// removed first. Every rule is validated before anything is written.
func (s *Service) ImportRules(bundle *RuleBundle, replace bool) (int, error) {
	for i := range bundle.Rules {
		if err := ValidateRule(&bundle.Rules[i]); err != nil {
			return 0, fmt.Errorf("rule %q: %w", bundle.Rules[i].Name, err)
		}
	}
	for _, d := range bundle.Defaults {
		if !d.Category.IsValid() {
			return 0, fmt.Errorf("default rule %q: %w", d.Category, ErrUnknownCategory)
		}
	}

	if replace {
		existing, err := s.GetRules()
		if err != nil {
			return 0, err
		}
		for _, r := range existing {
			if err := s.database.DeleteRule(r.ID); err != nil {
				return 0, fmt.Errorf("deleting rule %d: %w", r.ID, err)
			}
		}
	}

	imported := 0
	for _, r := range bundle.Rules {
		r.ID = 0
		if _, err := s.SaveRule(&r); err != nil {
			return imported, err
		}
		imported++
	}
	for _, d := range bundle.Defaults {
		if _, err := s.SaveDefaultRule(&d); err != nil {
			return imported, err
		}
	}
	for _, m := range bundle.Mappings {
		if _, err := s.SaveExtensionMapping(m.Extension, m.Category); err != nil {
			return imported, err
		}
	}
	if len(bundle.Exclusions) > 0 {
		existing, err := s.GetExclusions()
		if err != nil {
			return imported, err
		}
		known := make(map[string]bool, len(existing))
		for _, e := range existing {
			known[e.Pattern] = true
		}
		for _, p := range bundle.Exclusions {
			if known[p] {
				continue
			}
			if _, err := s.AddExclusion(p); err != nil {
				return imported, err
			}
			known[p] = true
		}
	}
	return imported, nil
}
