package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/search"
)

// seed nạp địa chỉ vào Meilisearch, từ file JSON hoặc từ collection MongoDB.
func main() {
	file := flag.String("file", "", "JSON array of addresses; reads the mongo addresses collection when empty")
	batchSize := flag.Int("batch", 1000, "documents per batch")
	skipSettings := flag.Bool("skip-settings", false, "do not update index settings")
	flag.Parse()

	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.SetDefault("meilisearch.url", "http://localhost:7700")
	viper.SetDefault("meilisearch.index", "addresses")
	viper.SetDefault("mongo.url", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "address_lookup")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Cannot read config file: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	defer logger.Sync()

	searcher, err := search.NewAddressSearcher(search.Config{
		Host:      viper.GetString("meilisearch.url"),
		APIKey:    viper.GetString("meilisearch.master_key"),
		IndexName: viper.GetString("meilisearch.index"),
		Timeout:   2 * time.Minute,
	}, logger)
	if err != nil {
		logger.Fatal("Không thể kết nối Meilisearch", zap.Error(err))
	}

	var addrs []lookup.Address
	if *file != "" {
		addrs, err = readFile(*file)
	} else {
		addrs, err = readMongo(viper.GetString("mongo.url"), viper.GetString("mongo.database"))
	}
	if err != nil {
		logger.Fatal("Lỗi đọc dữ liệu", zap.Error(err))
	}

	docs := make([]search.Document, 0, len(addrs))
	skipped := 0
	for _, a := range addrs {
		if a.Postcode == "" || a.HouseNumber <= 0 {
			skipped++
			continue
		}
		docs = append(docs, search.NewDocument(a))
	}
	logger.Info("addresses loaded", zap.Int("documents", len(docs)), zap.Int("skipped", skipped))

	if !*skipSettings {
		if err := searcher.BuildIndex(); err != nil {
			logger.Fatal("Lỗi cập nhật settings", zap.Error(err))
		}
	}

	if err := searcher.Seed(docs, *batchSize); err != nil {
		logger.Fatal("Lỗi seed dữ liệu", zap.Error(err))
	}

	fmt.Printf("Hoàn thành! Đã seed %d documents vào Meilisearch\n", len(docs))
}

func readFile(path string) ([]lookup.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var addrs []lookup.Address
	if err := json.NewDecoder(f).Decode(&addrs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return addrs, nil
}

func readMongo(url, database string) ([]lookup.Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	defer client.Disconnect(context.Background())

	cursor, err := client.Database(database).Collection("addresses").Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer cursor.Close(ctx)

	var addrs []lookup.Address
	if err := cursor.All(ctx, &addrs); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	return addrs, nil
}
