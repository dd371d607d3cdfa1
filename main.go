package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vladimiradmaev/glucose-monitor/internal/api"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/handlers"
	"github.com/vladimiradmaev/glucose-monitor/internal/bot/state"
	"github.com/vladimiradmaev/glucose-monitor/internal/config"
	"github.com/vladimiradmaev/glucose-monitor/internal/database"
	"github.com/vladimiradmaev/glucose-monitor/internal/devices"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
	"github.com/vladimiradmaev/glucose-monitor/internal/metrics"
	"github.com/vladimiradmaev/glucose-monitor/internal/notify"
	"github.com/vladimiradmaev/glucose-monitor/internal/repository"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		logger.Fatal("Failed to initialize logger", "error", err)
	}
	defer logger.Close()
	logger.Info("Starting glucose monitor")

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Failed to resolve time zone", "timezone", cfg.Timezone, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	repos := repository.NewRepositories(db)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "addr", cfg.Redis.Addr(), "error", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected", "addr", cfg.Redis.Addr())
	}

	m := metrics.New()

	router := devices.NewDefaultRouter(cfg.Monitor.FetchTimeout)
	registry := services.NewDeviceRegistry(router.Supported(), repos.Devices)
	restored, err := registry.Restore(ctx)
	if err != nil {
		logger.Fatal("Failed to restore device registrations", "error", err)
	}
	m.SetRegisteredDevices(registry.Len())
	logger.Info("Device registrations restored", "count", restored)

	aiService, err := services.NewAIService(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to initialize text generation", "error", err)
	}
	defer aiService.Close()

	var generator domain.TextGenerator
	if aiService.Enabled() {
		generator = aiService
	} else {
		logger.Warn("No text generation provider configured, using fallback messages")
	}
	narratives := services.NewNarrativeGenerator(generator, services.NarrativeConfig{
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		AlertMaxTokens: cfg.LLM.AlertMaxTokens,
		AdviceTokens:   cfg.LLM.AdviceTokens,
		Timeout:        cfg.LLM.Timeout,
	})

	userService := services.NewUserService(repos.Users)
	bloodSugarService := services.NewBloodSugarService(repos.Readings, loc)

	var stateManager state.StateManager = state.NewManager(0)
	var cooldown notify.Cooldown = notify.NewMemoryCooldown(cfg.Monitor.AlertCooldown)
	if redisClient != nil {
		stateManager = state.NewRedisManager(redisClient, 0)
		cooldown = notify.NewRedisCooldown(redisClient, cfg.Monitor.AlertCooldown)
	}

	sinks := notify.Multi{notify.LogNotifier{}}
	var botAPI *tgbotapi.BotAPI
	if cfg.TelegramToken != "" {
		botAPI, err = bot.NewAPI(cfg.TelegramToken)
		if err != nil {
			logger.Fatal("Failed to create bot", "error", err)
		}
		sinks = append(sinks, notify.NewTelegramNotifier(botAPI, repos.Users))
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, bot and chat alerts disabled")
	}

	monitor := services.NewMonitorService(services.MonitorDeps{
		Registry:        registry,
		Source:          router,
		Store:           repos.Readings,
		Users:           repos.Users,
		Narratives:      narratives,
		Notifier:        notify.NewSuppressing(sinks, cooldown, m),
		Metrics:         m,
		Location:        loc,
		SyncWindowHours: cfg.Monitor.WindowHours,
	})

	var telegramBot domain.BotService
	if botAPI != nil {
		telegramBot = bot.NewBot(botAPI, handlers.Dependencies{
			UserService:   userService,
			BloodSugarSvc: bloodSugarService,
			MonitorSvc:    monitor,
		}, stateManager)
	}

	scheduler := services.NewScheduler(services.SchedulerConfig{
		Interval:    cfg.Monitor.Interval,
		Workers:     cfg.Monitor.Workers,
		UserTimeout: cfg.Monitor.UserTimeout,
		StopTimeout: cfg.Monitor.StopTimeout,
	}, registry, monitor, m)
	scheduler.Start()

	server := api.NewServer(cfg.HTTPAddr, monitor, bloodSugarService, m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error("HTTP server stopped with error", "error", err)
			stop()
		}
	}()

	if telegramBot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := telegramBot.Start(ctx); err != nil {
				logger.Error("Bot stopped with error", "error", err)
				stop()
			}
		}()
	}

	logger.Info("Glucose monitor is running", "http_addr", cfg.HTTPAddr, "interval", cfg.Monitor.Interval)
	<-ctx.Done()
	logger.Info("Shutting down")

	scheduler.Stop()
	if telegramBot != nil {
		telegramBot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	wg.Wait()
	logger.Info("Stopped")
}
