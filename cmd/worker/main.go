package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/address-lookup/app/config"
	"github.com/address-lookup/app/services"
	"github.com/address-lookup/internal/external"
)

// worker định kỳ kiểm tra lại các địa chỉ được tra cứu nhiều nhất.
func main() {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.SetDefault("lookup.config", "config/lookup.yaml")
	viper.SetDefault("mongo.url", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "address_lookup")
	viper.SetDefault("worker.interval", "1h")
	viper.SetDefault("worker.hot_keys", 500)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Cannot read config file: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	defer logger.Sync()

	if err := config.Load(viper.GetString("lookup.config")); err != nil {
		logger.Warn("Using default lookup config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(viper.GetString("mongo.url")))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	mongoCache, err := services.NewMongoCacheService(client.Database(viper.GetString("mongo.database")),
		config.C.Cache.L1Size, config.C.CacheTTL(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize MongoDB cache", zap.Error(err))
	}

	// Redis phải nhận cùng kết quả mới, nếu không API vẫn đọc bản cũ.
	var cache services.ICacheService = mongoCache
	if url := viper.GetString("redis.url"); url != "" {
		redisCache, err := services.NewRedisCacheService(url, config.C.CacheTTL(), logger)
		if err != nil {
			logger.Warn("Redis unavailable, refreshing MongoDB only", zap.Error(err))
		} else {
			cache = services.NewHybridCacheService(redisCache, mongoCache, logger)
		}
	}
	defer cache.Close()

	api := external.NewPostcodeClient(external.Options{
		BaseURL:   viper.GetString("postcode_api.url"),
		Key:       viper.GetString("postcode_api.key"),
		Secret:    viper.GetString("postcode_api.secret"),
		Timeout:   config.C.APITimeout(),
		RateLimit: config.C.API.RateLimit,
		Burst:     config.C.API.Burst,
	}, logger)

	interval := viper.GetDuration("worker.interval")
	if interval <= 0 {
		interval = time.Hour
	}

	logger.Info("Starting cache refresh worker",
		zap.Duration("interval", interval),
		zap.Int("hot_keys", viper.GetInt("worker.hot_keys")))

	services.NewCacheRefresher(mongoCache, api, cache, logger).Run(ctx, interval, viper.GetInt("worker.hot_keys"))

	logger.Info("Worker exited")
}
