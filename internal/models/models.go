package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const minDescriptionLength = 5

// Location is a geographic coordinate pair resolved from an address
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Place represents a point of interest owned by exactly one user
type Place struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Address     string    `json:"address" bson:"address"`
	Location    Location  `json:"location" bson:"location"`
	Image       string    `json:"image" bson:"image"`
	Creator     string    `json:"creator" bson:"creator"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// User represents a place owner. Users are provisioned by the identity
// subsystem; this service only maintains their Places list.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Image     string    `json:"image,omitempty" bson:"image,omitempty"`
	Places    []string  `json:"places" bson:"places"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// HasPlace reports whether placeID is in the user's places list
func (u *User) HasPlace(placeID string) bool {
	for _, id := range u.Places {
		if id == placeID {
			return true
		}
	}
	return false
}

// Identity is the authenticated caller resolved from a bearer token
type Identity struct {
	UserID string
}

// PlaceInput holds the fields supplied when creating a place
type PlaceInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Address     string `json:"address"`
}

// Valid reports whether the input passes the creation rules
func (in PlaceInput) Valid() bool {
	return notBlank(in.Title) && notBlank(in.Address) && longEnough(in.Description)
}

// PlacePatch holds the mutable fields of a place
type PlacePatch struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Valid reports whether the patch passes the update rules
func (p PlacePatch) Valid() bool {
	return notBlank(p.Title) && longEnough(p.Description)
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(s) >= minDescriptionLength
}
