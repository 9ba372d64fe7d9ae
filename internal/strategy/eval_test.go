package strategy

import (
	"testing"

	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/pkg/models"
)

func newTestEvaluator(length int) *Evaluator {
	return NewEvaluator(length)
}

func enabledRule(conds ...Condition) Rule {
	return Rule{
		ID:         "test",
		Category:   CategoryEntry,
		Direction:  models.DirectionLong,
		Conditions: conds,
		Enabled:    true,
		Weight:     1,
	}
}

func TestCrossAboveLiteral(t *testing.T) {
	e := newTestEvaluator(5)
	e.AddSeries("rsi", []float64{40, 45, 55, 60, 50})

	rule := enabledRule(Condition{Indicator: "rsi", Operator: OpCrossAbove, Value: 50})

	tests := []struct {
		index int
		want  bool
	}{
		{0, false}, // нет предыдущей свечи
		{1, false},
		{2, true}, // 45 <= 50, 55 > 50
		{3, false},
		{4, false},
	}
	for _, tt := range tests {
		if got := e.EvaluateRule(rule, tt.index); got != tt.want {
			t.Errorf("index %d: got %v, want %v", tt.index, got, tt.want)
		}
	}
}

func TestCrossBelowSeries(t *testing.T) {
	e := newTestEvaluator(4)
	e.AddSeries("ema_fast", []float64{10, 11, 9, 8})
	e.AddSeries("ema_slow", []float64{10, 10, 10, 10})

	rule := enabledRule(Condition{Indicator: "ema_fast", Operator: OpCrossBelow, Compare: "ema_slow"})

	tests := []struct {
		index int
		want  bool
	}{
		{1, false},
		{2, true}, // 11 >= 10, 9 < 10
		{3, false},
	}
	for _, tt := range tests {
		if got := e.EvaluateRule(rule, tt.index); got != tt.want {
			t.Errorf("index %d: got %v, want %v", tt.index, got, tt.want)
		}
	}
}

func TestEqualEpsilon(t *testing.T) {
	e := newTestEvaluator(2)
	e.AddSeries("x", []float64{1.0, 1.005})

	rule := enabledRule(Condition{Indicator: "x", Operator: OpEqual, Value: 1.0})
	if !e.EvaluateRule(rule, 1) {
		t.Error("разница 0.005 должна считаться равенством")
	}

	rule = enabledRule(Condition{Indicator: "x", Operator: OpEqual, Value: 1.1})
	if e.EvaluateRule(rule, 1) {
		t.Error("разница 0.095 не должна считаться равенством")
	}
}

func TestComparisonOperators(t *testing.T) {
	e := newTestEvaluator(1)
	e.AddSeries("v", []float64{42})

	tests := []struct {
		name string
		op   Operator
		val  float64
		want bool
	}{
		{"greater true", OpGreater, 40, true},
		{"greater false", OpGreater, 45, false},
		{"less true", OpLess, 45, true},
		{"less false", OpLess, 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := enabledRule(Condition{Indicator: "v", Operator: tt.op, Value: tt.val})
			if got := e.EvaluateRule(rule, 0); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogicCombination(t *testing.T) {
	e := newTestEvaluator(1)
	e.AddSeries("a", []float64{10})
	e.AddSeries("b", []float64{20})

	tests := []struct {
		name  string
		conds []Condition
		want  bool
	}{
		{
			"and both true",
			[]Condition{
				{Indicator: "a", Operator: OpGreater, Value: 5},
				{Indicator: "b", Operator: OpGreater, Value: 15, Logic: LogicAnd},
			},
			true,
		},
		{
			"and one false",
			[]Condition{
				{Indicator: "a", Operator: OpGreater, Value: 5},
				{Indicator: "b", Operator: OpGreater, Value: 25, Logic: LogicAnd},
			},
			false,
		},
		{
			"or rescues",
			[]Condition{
				{Indicator: "a", Operator: OpGreater, Value: 15},
				{Indicator: "b", Operator: OpGreater, Value: 15, Logic: LogicOr},
			},
			true,
		},
		{
			"or both false",
			[]Condition{
				{Indicator: "a", Operator: OpGreater, Value: 15},
				{Indicator: "b", Operator: OpGreater, Value: 25, Logic: LogicOr},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.EvaluateRule(enabledRule(tt.conds...), 0); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDisabledAndEmptyRules(t *testing.T) {
	e := newTestEvaluator(1)
	e.AddSeries("v", []float64{42})

	disabled := enabledRule(Condition{Indicator: "v", Operator: OpGreater, Value: 0})
	disabled.Enabled = false
	if e.EvaluateRule(disabled, 0) {
		t.Error("выключенное правило должно давать false")
	}

	empty := enabledRule()
	if e.EvaluateRule(empty, 0) {
		t.Error("правило без условий должно давать false")
	}
}

func TestUnwarmedSeries(t *testing.T) {
	// Серия короче ряда свечей: выровнена по правому краю
	e := newTestEvaluator(5)
	e.AddSeries("sma", []float64{10, 11}) // покрывает только свечи 3 и 4

	rule := enabledRule(Condition{Indicator: "sma", Operator: OpGreater, Value: 0})

	for index, want := range []bool{false, false, false, true, true} {
		if got := e.EvaluateRule(rule, index); got != want {
			t.Errorf("index %d: got %v, want %v", index, got, want)
		}
	}
}

func TestUnknownSeries(t *testing.T) {
	e := newTestEvaluator(1)
	rule := enabledRule(Condition{Indicator: "missing", Operator: OpGreater, Value: 0})
	if e.EvaluateRule(rule, 0) {
		t.Error("отсутствующая серия должна давать false")
	}
}

func TestFromConfig(t *testing.T) {
	rules := FromConfig([]config.RuleConfig{
		{
			ID:        "r1",
			Category:  "entry",
			Direction: "long",
			Enabled:   true,
			Weight:    1,
			Conditions: []config.ConditionConfig{
				{Indicator: "rsi", Operator: "<", Value: 30},
				{Indicator: "ema_fast", Operator: "cross_above", Compare: "ema_slow", Logic: "or"},
			},
		},
	})

	if len(rules) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules))
	}
	r := rules[0]
	if r.Category != CategoryEntry || r.Direction != models.DirectionLong || !r.Enabled {
		t.Errorf("неверно преобразованы поля правила: %+v", r)
	}
	if r.Conditions[0].Logic != LogicAnd {
		t.Errorf("связка по умолчанию должна быть and, получено %v", r.Conditions[0].Logic)
	}
	if r.Conditions[1].Logic != LogicOr {
		t.Errorf("явная связка or потеряна: %v", r.Conditions[1].Logic)
	}
}
