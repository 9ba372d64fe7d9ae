package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/pkg/models"
)

// BinanceClient клиент для взаимодействия с Binance
type BinanceClient struct {
	futures *futures.Client
	spot    *binance.Client
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	// Testnet переключается пакетными флагами до создания клиентов
	futures.UseTestnet = cfg.Testnet
	binance.UseTestnet = cfg.Testnet

	return &BinanceClient{
		futures: futures.NewClient(cfg.APIKey, cfg.APISecret),
		spot:    binance.NewClient(cfg.APIKey, cfg.APISecret),
	}, nil
}

// GetKlines получает исторические свечи
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]*models.Candle, len(klines))
	for i, k := range klines {
		candle := &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  time.Unix(k.OpenTime/1000, 0),
			Open:      parsePrice(k.Open),
			High:      parsePrice(k.High),
			Low:       parsePrice(k.Low),
			Close:     parsePrice(k.Close),
			Volume:    parsePrice(k.Volume),
			CloseTime: time.Unix(k.CloseTime/1000, 0),
		}
		candles[i] = candle
	}

	return candles, nil
}

// parsePrice переводит строковую цену Binance в число
func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
