package strategy

import (
	"math"
)

// Допуск для оператора равенства
const equalEpsilon = 0.01

// Evaluator оценивает правила по именованным сериям значений индикаторов.
// Серии выровнены по правому краю ряда свечей: последний элемент серии
// соответствует последней свече.
type Evaluator struct {
	series map[string][]float64
	length int // длина ряда свечей
}

// NewEvaluator создает оценщик для ряда свечей заданной длины
func NewEvaluator(length int) *Evaluator {
	return &Evaluator{
		series: make(map[string][]float64),
		length: length,
	}
}

// AddSeries регистрирует именованную серию значений
func (e *Evaluator) AddSeries(name string, values []float64) {
	e.series[name] = values
}

// value возвращает значение серии на свече index с учетом прогрева
func (e *Evaluator) value(name string, index int) (float64, bool) {
	s, ok := e.series[name]
	if !ok || len(s) == 0 {
		return 0, false
	}
	// Смещение серии относительно ряда свечей
	offset := e.length - len(s)
	i := index - offset
	if i < 0 || i >= len(s) {
		return 0, false
	}
	return s[i], true
}

// right возвращает правый операнд условия: литерал или значение другой серии
func (e *Evaluator) right(c Condition, index int) (float64, bool) {
	if c.Compare != "" {
		return e.value(c.Compare, index)
	}
	return c.Value, true
}

// EvaluateRule оценивает правило на свече index. Выключенное правило
// и правило без условий оцениваются в false. Условия объединяются
// слева направо: AND по умолчанию, OR если указано в условии.
func (e *Evaluator) EvaluateRule(r Rule, index int) bool {
	if !r.Enabled || len(r.Conditions) == 0 {
		return false
	}

	result := e.evalCondition(r.Conditions[0], index)
	for _, c := range r.Conditions[1:] {
		if c.Logic == LogicOr {
			result = result || e.evalCondition(c, index)
		} else {
			result = result && e.evalCondition(c, index)
		}
	}
	return result
}

// evalCondition оценивает одно условие на свече index.
// Непрогретая серия дает false.
func (e *Evaluator) evalCondition(c Condition, index int) bool {
	left, ok := e.value(c.Indicator, index)
	if !ok {
		return false
	}
	right, ok := e.right(c, index)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpGreater:
		return left > right
	case OpLess:
		return left < right
	case OpEqual:
		return math.Abs(left-right) < equalEpsilon
	case OpCrossAbove, OpCrossBelow:
		// Строгое пересечение: отношение меняется ровно на этой свече.
		// На первой оцениваемой свече пересечение не определено.
		prevLeft, ok := e.value(c.Indicator, index-1)
		if !ok {
			return false
		}
		prevRight := c.Value
		if c.Compare != "" {
			prevRight, ok = e.value(c.Compare, index-1)
			if !ok {
				return false
			}
		}
		if c.Operator == OpCrossAbove {
			return prevLeft <= prevRight && left > right
		}
		return prevLeft >= prevRight && left < right
	}
	return false
}
