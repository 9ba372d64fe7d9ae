package exchange

import (
	"context"
	"time"

	"github.com/skalibog/ssbe/pkg/logger"
	"github.com/skalibog/ssbe/pkg/models"
	"go.uber.org/zap"
)

// Период опроса биржи сборщиком свечей
const pollInterval = 5 * time.Second

// CandleSink принимает закрытые свечи от сборщика
type CandleSink interface {
	IngestCandle(candle models.Candle)
}

// CandleCollector опрашивает биржу и передает новые закрытые свечи
// потребителю. Каждая свеча передается не более одного раза.
type CandleCollector struct {
	client   *BinanceClient
	sink     CandleSink
	symbol   string
	interval string

	lastOpenTime time.Time
	cancel       context.CancelFunc
}

// NewCandleCollector создает сборщик свечей для символа
func NewCandleCollector(client *BinanceClient, sink CandleSink, symbol, interval string) *CandleCollector {
	return &CandleCollector{
		client:   client,
		sink:     sink,
		symbol:   symbol,
		interval: interval,
	}
}

// Start запускает цикл опроса. Блокируется до отмены контекста.
func (c *CandleCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	logger.Info("Старт сборщика свечей",
		zap.String("symbol", c.symbol),
		zap.String("interval", c.interval))

	for {
		select {
		case <-ticker.C:
			c.poll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop останавливает цикл опроса
func (c *CandleCollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// poll запрашивает последние свечи и передает закрытые потребителю
func (c *CandleCollector) poll(ctx context.Context) {
	// Две последние свечи: предпоследняя гарантированно закрыта
	candles, err := c.client.GetKlines(ctx, c.symbol, c.interval, 2)
	if err != nil {
		logger.Warn("Ошибка опроса свечей", zap.String("symbol", c.symbol), zap.Error(err))
		return
	}
	if len(candles) < 2 {
		return
	}

	closed := candles[len(candles)-2]
	if !closed.OpenTime.After(c.lastOpenTime) {
		return
	}
	c.lastOpenTime = closed.OpenTime
	c.sink.IngestCandle(*closed)
}
