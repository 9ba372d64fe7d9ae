package risk

// Статическая матрица корреляций основных пар USDT-фьючерсов.
// Значения симметричны; неизвестные пары считаются некоррелированными.
var correlationMatrix = map[string]map[string]float64{
	"BTCUSDT": {
		"ETHUSDT": 0.85,
		"BNBUSDT": 0.75,
		"SOLUSDT": 0.72,
		"ADAUSDT": 0.68,
	},
	"ETHUSDT": {
		"BNBUSDT": 0.78,
		"SOLUSDT": 0.76,
		"ADAUSDT": 0.71,
	},
	"BNBUSDT": {
		"SOLUSDT": 0.65,
		"ADAUSDT": 0.62,
	},
	"SOLUSDT": {
		"ADAUSDT": 0.70,
	},
}

// Correlation возвращает коэффициент корреляции двух символов
func Correlation(a, b string) float64 {
	if a == b {
		return 1
	}
	if row, ok := correlationMatrix[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := correlationMatrix[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return 0
}
