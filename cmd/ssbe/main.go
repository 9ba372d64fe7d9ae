package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skalibog/ssbe/internal/backtest"
	"github.com/skalibog/ssbe/internal/config"
	"github.com/skalibog/ssbe/internal/exchange"
	"github.com/skalibog/ssbe/internal/risk"
	"github.com/skalibog/ssbe/internal/session"
	sigGen "github.com/skalibog/ssbe/internal/signal"
	"github.com/skalibog/ssbe/internal/storage"
	"github.com/skalibog/ssbe/internal/strategy"
	"github.com/skalibog/ssbe/internal/ui"
	"github.com/skalibog/ssbe/pkg/logger"
	"github.com/skalibog/ssbe/pkg/models"
	"go.uber.org/zap"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	mode := flag.String("mode", "live", "режим работы: live или backtest")
	balance := flag.Float64("balance", 10000, "начальный баланс счета для live-режима")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	switch *mode {
	case "backtest":
		runBacktest(cfg)
	case "live":
		runLive(cfg, *balance)
	default:
		logger.Fatal("Неизвестный режим", zap.String("mode", *mode))
	}
}

// runBacktest прогоняет стратегию по историческим свечам и
// экспортирует журнал сделок в CSV
func runBacktest(cfg *config.Config) {
	ctx := context.Background()

	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	for _, symbol := range cfg.Trading.Symbols {
		candles, err := client.GetKlines(ctx, symbol, cfg.Trading.Interval, cfg.Backtest.CandleLimit)
		if err != nil {
			logger.Error("Ошибка загрузки свечей", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		series := make([]models.Candle, len(candles))
		for i, c := range candles {
			series[i] = *c
		}

		engine := backtest.NewEngine(cfg.Backtest, strategy.FromConfig(cfg.Backtest.Rules))
		if err := engine.LoadData(series); err != nil {
			logger.Error("Ошибка загрузки данных", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		result, err := engine.Run(ctx)
		if err != nil {
			logger.Error("Ошибка прогона бэктеста", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		fmt.Printf("%s: доходность %.2f%%, сделок %d, винрейт %.1f%%, Sharpe %.2f, просадка %.1f%%\n",
			symbol, result.TotalReturnPercent, result.TotalTrades,
			result.WinRate*100, result.SharpeRatio, result.MaxDrawdownPercent)

		if cfg.Backtest.ExportPath != "" {
			path := fmt.Sprintf("%s/%s.csv", cfg.Backtest.ExportPath, symbol)
			if err := backtest.WriteCSV(result, path); err != nil {
				logger.Error("Ошибка экспорта CSV", zap.String("symbol", symbol), zap.Error(err))
			}
		}
	}
}

// runLive запускает сессии символов, сборщики свечей и монитор
func runLive(cfg *config.Config, balance float64) {
	// Создаем контекст с возможностью отмены через горутину
	ctx, cancel := context.WithCancel(context.Background())

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
		time.Sleep(2 * time.Second) // Даем горутинам время на завершение
		os.Exit(0)
	}()

	// Инициализируем хранилище
	var store storage.Storage
	if cfg.Storage.Type == "influxdb" {
		influx, err := storage.NewInfluxDBStorage(cfg.Storage)
		if err != nil {
			logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
		}
		store = influx
	} else {
		store = storage.NewMemoryStorage()
	}
	defer store.Close()

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	executor := &intentLogger{}
	generator := sigGen.NewGenerator(cfg.Signal)

	// Создаем сессию и сборщик для каждого символа
	sessions := make(map[string]*session.Session)
	for _, symbol := range cfg.Trading.Symbols {
		riskMgr := risk.NewManager(cfg.Risk, balance)
		sess := session.NewSession(symbol, cfg.Trading, generator, riskMgr, store, executor)

		// Прогреваем окно исторической серией
		candles, err := client.GetKlines(ctx, symbol, cfg.Trading.Interval, cfg.Trading.HistorySize)
		if err != nil {
			logger.Warn("Не удалось загрузить историю", zap.String("symbol", symbol), zap.Error(err))
		} else {
			series := make([]models.Candle, len(candles))
			for i, c := range candles {
				series[i] = *c
			}
			sess.LoadHistoricalSeries(series)
		}

		sessions[symbol] = sess
		go sess.Start(ctx)

		collector := exchange.NewCandleCollector(client, sess, symbol, cfg.Trading.Interval)
		go func() {
			defer collector.Stop()
			if err := collector.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Сборщик свечей завершился с ошибкой", zap.Error(err))
			}
		}()
	}

	// Запускаем UI в основном потоке (блокирующий вызов)
	userInterface := ui.NewTermUI(cfg.UI, sessions)
	if err := userInterface.Start(); err != nil {
		logger.Fatal("Ошибка интерфейса", zap.Error(err))
	}
}

// intentLogger — исполнитель по умолчанию: только записывает намерения.
// Реальное размещение заявок выполняет внешняя система.
type intentLogger struct{}

func (l *intentLogger) PlaceIntent(ctx context.Context, intent models.OrderIntent) error {
	logger.Info("Торговое намерение",
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("amount", intent.Amount),
		zap.Float64("price", intent.Price),
		zap.Float64("stop_loss", intent.StopLoss),
		zap.Float64("take_profit", intent.TakeProfit))
	return nil
}
