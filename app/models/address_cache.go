package models

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/address-lookup/internal/lookup"
)

// Result kinds as stored in the cache.
const (
	KindValid             = "valid"
	KindNotFound          = "not_found"
	KindAdditionAmbiguous = "addition_ambiguous"
)

// CachedLookup is a completed lookup answer. Transport failures are never
// cached.
type CachedLookup struct {
	Kind       string          `bson:"kind" json:"kind"`
	Address    *lookup.Address `bson:"address,omitempty" json:"address,omitempty"`
	Candidates []string        `bson:"candidates,omitempty" json:"candidates,omitempty"`
	CachedAt   time.Time       `bson:"cached_at" json:"cached_at"`
}

// NewCachedLookup converts r. The boolean is false for results that must
// not be cached.
func NewCachedLookup(r lookup.Result) (*CachedLookup, bool) {
	c := &CachedLookup{CachedAt: time.Now(), Candidates: slices.Clone(r.Candidates)}
	switch r.Kind {
	case lookup.ResultValid:
		c.Kind = KindValid
	case lookup.ResultNotFound:
		c.Kind = KindNotFound
	case lookup.ResultAdditionAmbiguous:
		c.Kind = KindAdditionAmbiguous
	default:
		return nil, false
	}
	if r.Address != nil {
		addr := *r.Address
		c.Address = &addr
	}
	return c, true
}

// Result converts the entry back.
func (c *CachedLookup) Result() (lookup.Result, error) {
	switch c.Kind {
	case KindValid:
		if c.Address == nil {
			return lookup.Result{}, fmt.Errorf("cached valid lookup without address")
		}
		return lookup.Valid(*c.Address), nil
	case KindNotFound:
		return lookup.NotFound(), nil
	case KindAdditionAmbiguous:
		if c.Address == nil {
			return lookup.Result{}, fmt.Errorf("cached ambiguous lookup without address")
		}
		return lookup.AdditionAmbiguous(*c.Address, c.Candidates), nil
	}
	return lookup.Result{}, fmt.Errorf("unknown cached lookup kind %q", c.Kind)
}

// AddressCache is the persisted form of a CachedLookup.
type AddressCache struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Fingerprint  string             `bson:"fingerprint" json:"fingerprint"` // sha256 of the cache key
	Key          string             `bson:"key" json:"key"`                 // canonical key, nl:1234AB:10:
	Postcode     string             `bson:"postcode" json:"postcode"`
	Lookup       CachedLookup       `bson:"lookup" json:"lookup"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt    time.Time          `bson:"expires_at" json:"expires_at"`
	LastAccessed time.Time          `bson:"last_accessed" json:"last_accessed"`
	AccessCount  int                `bson:"access_count" json:"access_count"`
}

// NewAddressCache tạo mới một AddressCache
func NewAddressCache(key, postcode string, entry CachedLookup, ttl time.Duration) *AddressCache {
	now := time.Now()
	return &AddressCache{
		Fingerprint:  Fingerprint(key),
		Key:          key,
		Postcode:     postcode,
		Lookup:       entry,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastAccessed: now,
		AccessCount:  1,
	}
}

// Fingerprint hashes a cache key.
func Fingerprint(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x", hash)
}

// IsExpired reports whether the entry outlived its TTL.
func (ac *AddressCache) IsExpired(now time.Time) bool {
	return !ac.ExpiresAt.IsZero() && now.After(ac.ExpiresAt)
}
