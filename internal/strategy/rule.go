package strategy

import (
	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/pkg/models"
)

// Category представляет категорию правила
type Category string

const (
	CategoryEntry  Category = "entry"
	CategoryExit   Category = "exit"
	CategoryFilter Category = "filter"
)

// Operator представляет оператор сравнения условия
type Operator string

const (
	OpGreater    Operator = ">"
	OpLess       Operator = "<"
	OpEqual      Operator = "="
	OpCrossAbove Operator = "cross_above"
	OpCrossBelow Operator = "cross_below"
)

// Logic представляет логическую связку с предыдущим условием
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Condition представляет одно условие правила. Условие — чистые данные,
// без исполняемого кода: интерпретация выполняется оценщиком.
type Condition struct {
	Indicator string // ключ серии слева
	Operator  Operator
	Value     float64 // литерал справа
	Compare   string  // ключ другой серии справа вместо литерала
	Logic     Logic   // связка с предыдущим условием, по умолчанию and
}

// Rule представляет правило стратегии
type Rule struct {
	ID         string
	Category   Category
	Direction  models.Direction
	Conditions []Condition
	Enabled    bool
	Weight     float64
}

// FromConfig преобразует конфигурацию правил в правила стратегии
func FromConfig(cfgs []config.RuleConfig) []Rule {
	rules := make([]Rule, 0, len(cfgs))
	for _, rc := range cfgs {
		rule := Rule{
			ID:        rc.ID,
			Category:  Category(rc.Category),
			Direction: models.Direction(rc.Direction),
			Enabled:   rc.Enabled,
			Weight:    rc.Weight,
		}
		for _, cc := range rc.Conditions {
			logic := LogicAnd
			if cc.Logic == string(LogicOr) {
				logic = LogicOr
			}
			rule.Conditions = append(rule.Conditions, Condition{
				Indicator: cc.Indicator,
				Operator:  Operator(cc.Operator),
				Value:     cc.Value,
				Compare:   cc.Compare,
				Logic:     logic,
			})
		}
		rules = append(rules, rule)
	}
	return rules
}
