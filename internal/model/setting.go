package model

import "time"

// Setting is a named configuration value
type Setting struct {
	Name      string      `json:"name" bson:"_id"`
	Value     interface{} `json:"value" bson:"value"`
	UpdatedAt time.Time   `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}
