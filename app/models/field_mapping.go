package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/address-lookup/internal/mapping"
)

// FieldMappingProfile stores the field mapping of one form profile, e.g.
// "checkout" or "account".
type FieldMappingProfile struct {
	ID        primitive.ObjectID    `bson:"_id,omitempty" json:"id,omitempty"`
	Profile   string                `bson:"profile" json:"profile"`
	Config    mapping.Configuration `bson:"config" json:"config"`
	Version   int                   `bson:"version" json:"version"`
	UpdatedAt time.Time             `bson:"updated_at" json:"updated_at"`
}
