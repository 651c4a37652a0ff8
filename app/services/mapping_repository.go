package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
)

// ErrMappingNotFound is returned when a profile has no stored mapping.
var ErrMappingNotFound = errors.New("field mapping not found")

// MappingRepository persists field mapping profiles.
type MappingRepository interface {
	Get(ctx context.Context, profile string) (*models.FieldMappingProfile, error)
	Save(ctx context.Context, p *models.FieldMappingProfile) error
	List(ctx context.Context) ([]string, error)
}

// MongoMappingRepository lưu field mapping trong MongoDB
type MongoMappingRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoMappingRepository tạo mới MongoMappingRepository
func NewMongoMappingRepository(db *mongo.Database, logger *zap.Logger) *MongoMappingRepository {
	collection := db.Collection("field_mappings")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "profile", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		logger.Warn("could not create field_mappings index", zap.Error(err))
	}

	return &MongoMappingRepository{collection: collection, logger: logger}
}

func (r *MongoMappingRepository) Get(ctx context.Context, profile string) (*models.FieldMappingProfile, error) {
	var p models.FieldMappingProfile
	err := r.collection.FindOne(ctx, bson.M{"profile": profile}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load field mapping %s: %w", profile, err)
	}
	return &p, nil
}

func (r *MongoMappingRepository) Save(ctx context.Context, p *models.FieldMappingProfile) error {
	opts := options.Replace().SetUpsert(true)
	doc := *p
	doc.ID = primitive.NilObjectID
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"profile": p.Profile}, doc, opts); err != nil {
		return fmt.Errorf("save field mapping %s: %w", p.Profile, err)
	}
	return nil
}

func (r *MongoMappingRepository) List(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "profile", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list field mappings: %w", err)
	}
	profiles := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			profiles = append(profiles, s)
		}
	}
	slices.Sort(profiles)
	return profiles, nil
}

// MemoryMappingRepository keeps profiles in process, for tests and for
// running without MongoDB.
type MemoryMappingRepository struct {
	mu       sync.RWMutex
	profiles map[string]models.FieldMappingProfile
}

// NewMemoryMappingRepository tạo mới MemoryMappingRepository
func NewMemoryMappingRepository() *MemoryMappingRepository {
	return &MemoryMappingRepository{profiles: make(map[string]models.FieldMappingProfile)}
}

func (r *MemoryMappingRepository) Get(ctx context.Context, profile string) (*models.FieldMappingProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[profile]
	if !ok {
		return nil, ErrMappingNotFound
	}
	p.Config.Mapping = p.Config.Mapping.Clone()
	p.Config.Fields = slices.Clone(p.Config.Fields)
	return &p, nil
}

func (r *MemoryMappingRepository) Save(ctx context.Context, p *models.FieldMappingProfile) error {
	stored := *p
	stored.Config.Mapping = p.Config.Mapping.Clone()
	stored.Config.Fields = slices.Clone(p.Config.Fields)

	r.mu.Lock()
	r.profiles[p.Profile] = stored
	r.mu.Unlock()
	return nil
}

func (r *MemoryMappingRepository) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		profiles = append(profiles, name)
	}
	slices.Sort(profiles)
	return profiles, nil
}
