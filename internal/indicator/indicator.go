package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/ssbe/pkg/models"
)

// Значения индикаторов выровнены по правому краю: последний элемент
// соответствует последней свече. Короткий вход — это не ошибка,
// а незавершенный прогрев: возвращается пустой результат.

// SMA рассчитывает простую скользящую среднюю
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	result := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			result = append(result, sum/float64(period))
		}
	}
	return result
}

// EMA рассчитывает экспоненциальную скользящую среднюю.
// Первое значение инициализируется первым элементом ряда,
// далее рекурсия с множителем 2/(period+1).
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	k := 2.0 / float64(period+1)
	result := make([]float64, len(values))
	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = values[i]*k + result[i-1]*(1-k)
	}
	return result
}

// RSI рассчитывает индекс относительной силы по скользящему окну
// из period приращений. При нулевом среднем убытке RSI равен 100.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period+1 {
		return nil
	}

	result := make([]float64, 0, len(values)-period)
	for i := period; i < len(values); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			diff := values[j] - values[j-1]
			if diff > 0 {
				gains += diff
			} else {
				losses += -diff
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			result = append(result, 100)
			continue
		}
		rs := avgGain / avgLoss
		result = append(result, 100-100/(1+rs))
	}
	return result
}

// MACD рассчитывает линию MACD, сигнальную линию и гистограмму.
// Линии совмещаются по общему суффиксу обеих EMA.
func MACD(values []float64, fast, slow, signalPeriod int) (macd, signal, hist []float64) {
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	if len(emaFast) == 0 || len(emaSlow) == 0 {
		return nil, nil, nil
	}

	n := len(emaFast)
	if len(emaSlow) < n {
		n = len(emaSlow)
	}
	macd = make([]float64, n)
	for i := 0; i < n; i++ {
		macd[i] = emaFast[len(emaFast)-n+i] - emaSlow[len(emaSlow)-n+i]
	}

	signal = EMA(macd, signalPeriod)
	if len(signal) == 0 {
		return macd, nil, nil
	}

	m := len(signal)
	hist = make([]float64, m)
	for i := 0; i < m; i++ {
		hist[i] = macd[len(macd)-m+i] - signal[i]
	}
	return macd, signal, hist
}

// BollingerBands рассчитывает полосы Боллинджера: середина — SMA,
// смещение — множитель на стандартное отклонение генеральной совокупности
func BollingerBands(values []float64, period int, mult float64) (upper, middle, lower []float64) {
	middle = SMA(values, period)
	if len(middle) == 0 {
		return nil, nil, nil
	}

	upper = make([]float64, len(middle))
	lower = make([]float64, len(middle))
	for i := range middle {
		var sq float64
		for j := i; j < i+period; j++ {
			d := values[j] - middle[i]
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(period))
		upper[i] = middle[i] + mult*sd
		lower[i] = middle[i] - mult*sd
	}
	return upper, middle, lower
}

// Stochastic рассчитывает стохастический осциллятор %K/%D.
// При нулевом диапазоне (high == low) %K принимается за 50.
func Stochastic(candles []models.Candle, kPeriod, dPeriod int) (k, d []float64) {
	if kPeriod <= 0 || len(candles) < kPeriod {
		return nil, nil
	}

	k = make([]float64, 0, len(candles)-kPeriod+1)
	for i := kPeriod - 1; i < len(candles); i++ {
		lowest := candles[i].Low
		highest := candles[i].High
		for j := i - kPeriod + 1; j <= i; j++ {
			if candles[j].Low < lowest {
				lowest = candles[j].Low
			}
			if candles[j].High > highest {
				highest = candles[j].High
			}
		}
		rng := highest - lowest
		if rng == 0 {
			k = append(k, 50)
			continue
		}
		k = append(k, (candles[i].Close-lowest)/rng*100)
	}

	d = SMA(k, dPeriod)
	return k, d
}

// ADX рассчитывает индекс среднего направленного движения
func ADX(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < 2*period+1 {
		return nil
	}
	return talib.Adx(highs, lows, closes, period)
}

// ATR рассчитывает средний истинный диапазон
func ATR(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}
	return talib.Atr(highs, lows, closes, period)
}

// Closes извлекает цены закрытия из ряда свечей
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs извлекает максимумы из ряда свечей
func Highs(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows извлекает минимумы из ряда свечей
func Lows(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Last возвращает последнее значение серии и признак его наличия
func Last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}
