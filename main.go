package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/address-lookup/app/config"
	"github.com/address-lookup/app/controllers"
	"github.com/address-lookup/app/requests"
	"github.com/address-lookup/app/services"
	"github.com/address-lookup/internal/external"
	"github.com/address-lookup/internal/search"
	"github.com/address-lookup/routes"
)

func main() {
	// 1. Load configuration
	loadConfig()

	// 2. Khởi tạo logger
	logger := initLogger()
	defer logger.Sync()

	if err := config.Load(viper.GetString("lookup.config")); err != nil {
		logger.Warn("Using default lookup config", zap.Error(err))
	}
	locale, err := config.C.Locale()
	if err != nil {
		logger.Fatal("Invalid locale", zap.Error(err))
	}

	logger.Info("Starting Address Lookup Service")

	// 3. Kết nối MongoDB (tùy chọn)
	mongoDB := initMongoDB(logger)
	if mongoDB != nil {
		defer func() {
			if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
				logger.Error("Error disconnecting MongoDB", zap.Error(err))
			}
		}()
	}

	// 4. Cache: Redis L1 + MongoDB L2, từng tầng có thể thiếu
	cacheService := initCache(mongoDB, logger)
	defer cacheService.Close()

	// 5. Postcode API client
	client := external.NewPostcodeClient(external.Options{
		BaseURL:   viper.GetString("postcode_api.url"),
		Key:       viper.GetString("postcode_api.key"),
		Secret:    viper.GetString("postcode_api.secret"),
		Timeout:   config.C.APITimeout(),
		RateLimit: config.C.API.RateLimit,
		Burst:     config.C.API.Burst,
	}, logger)

	// 6. Meilisearch (tùy chọn)
	var (
		finder services.Searcher
		index  services.IndexAdmin
	)
	if viper.GetBool("meilisearch.enabled") {
		searcher, err := search.NewAddressSearcher(search.Config{
			Host:      viper.GetString("meilisearch.url"),
			APIKey:    viper.GetString("meilisearch.master_key"),
			IndexName: viper.GetString("meilisearch.index"),
			Timeout:   30 * time.Second,
			Limit:     config.C.Search.Limit,
		}, logger)
		if err != nil {
			logger.Warn("Meilisearch unavailable, search disabled", zap.Error(err))
		} else {
			finder, index = searcher, searcher
		}
	}

	// 7. Khởi tạo services
	var repo services.MappingRepository = services.NewMemoryMappingRepository()
	if mongoDB != nil {
		repo = services.NewMongoMappingRepository(mongoDB, logger)
	}
	mappingService := services.NewMappingService(repo, config.C.Mapping.StandardFields, logger)
	addressService := services.NewAddressService(client, cacheService, finder, locale, config.C.APITimeout(), logger)
	sessionService := services.NewSessionService(addressService, mappingService, config.C.SessionConfig(),
		config.C.SessionTTL(), config.C.Session.MaxSessions, logger)
	adminService := services.NewAdminService(addressService, cacheService, sessionService, mappingService, index, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessionService.RunJanitor(ctx, config.C.JanitorInterval())

	// 8. Khởi tạo controllers
	requests.RegisterValidators()
	ctrl := routes.Controllers{
		Address: controllers.NewAddressController(addressService, cacheService, config.C.Search.Limit, logger),
		Session: controllers.NewSessionController(sessionService, logger),
		Admin:   controllers.NewAdminController(adminService, mappingService, sessionService, logger),
	}

	// 9. Khởi tạo Gin router
	if viper.GetString("app.env") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router, ctrl)

	// 10. Khởi động server
	port := viper.GetString("app.port")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Address Lookup Service starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	sessionService.Close()

	logger.Info("Server exited")
}

// loadConfig load configuration từ file và env vars
func loadConfig() {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("lookup.config", "config/lookup.yaml")
	viper.SetDefault("postcode_api.url", external.DefaultBaseURL)
	viper.SetDefault("meilisearch.url", "http://localhost:7700")
	viper.SetDefault("meilisearch.index", "addresses")
	viper.SetDefault("meilisearch.enabled", false)
	viper.SetDefault("mongo.url", "")
	viper.SetDefault("mongo.database", "address_lookup")
	viper.SetDefault("redis.url", "")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Cannot read config file: %v", err)
	}
}

// initLogger khởi tạo structured logger
func initLogger() *zap.Logger {
	var cfg zap.Config
	if viper.GetString("app.env") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	return logger
}

// initMongoDB khởi tạo kết nối MongoDB; nil khi không cấu hình
func initMongoDB(logger *zap.Logger) *mongo.Database {
	mongoURL := viper.GetString("mongo.url")
	if mongoURL == "" {
		logger.Info("MongoDB not configured, using in-memory mapping store")
		return nil
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURL))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}

	dbName := viper.GetString("mongo.database")
	logger.Info("Connected to MongoDB", zap.String("database", dbName))
	return client.Database(dbName)
}

// initCache chọn cache theo hạ tầng có sẵn
func initCache(db *mongo.Database, logger *zap.Logger) services.ICacheService {
	ttl := config.C.CacheTTL()

	var redisCache services.ICacheService
	if url := viper.GetString("redis.url"); url != "" {
		rc, err := services.NewRedisCacheService(url, ttl, logger)
		if err != nil {
			logger.Warn("Redis unavailable", zap.Error(err))
		} else {
			redisCache = rc
		}
	}

	var mongoCache *services.MongoCacheService
	if db != nil {
		mc, err := services.NewMongoCacheService(db, config.C.Cache.L1Size, ttl, logger)
		if err != nil {
			logger.Fatal("Failed to initialize MongoDB cache", zap.Error(err))
		}
		if n, err := mc.WarmUp(context.Background(), config.C.Cache.L1Size/2); err != nil {
			logger.Warn("Failed to warm up cache", zap.Error(err))
		} else {
			logger.Info("Cache warmed up", zap.Int("entries", n))
		}
		mongoCache = mc
	}

	switch {
	case redisCache != nil && mongoCache != nil:
		return services.NewHybridCacheService(redisCache, mongoCache, logger)
	case redisCache != nil:
		return redisCache
	case mongoCache != nil:
		return mongoCache
	}
	logger.Info("No cache backend configured, using in-memory cache")
	return services.NewCacheService(ttl)
}
