package models

import "time"

// PointRecord is a point as persisted by the fleet control service.
type PointRecord struct {
	ID          FlexID   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Code        string   `json:"code,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Z           *float64 `json:"z,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	CreateTime  string   `json:"createTime,omitempty"`
}

// PathRecord is a path as persisted by the fleet control service. It carries
// only its end point references and a scalar length, no geometry.
type PathRecord struct {
	ID             FlexID   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Code           string   `json:"code,omitempty"`
	StartPointID   FlexID   `json:"startPointId,omitempty"`
	StartPointName string   `json:"startPointName,omitempty"`
	EndPointID     FlexID   `json:"endPointId,omitempty"`
	EndPointName   string   `json:"endPointName,omitempty"`
	Length         *float64 `json:"length,omitempty"`
	Type           string   `json:"type,omitempty"`
	Description    string   `json:"description,omitempty"`
	Status         string   `json:"status"`
	CreateTime     string   `json:"createTime,omitempty"`
}

// LocationRecord is a location as persisted by the fleet control service.
// Only the center point is stored.
type LocationRecord struct {
	ID               FlexID   `json:"id,omitempty"`
	Name             string   `json:"name"`
	Code             string   `json:"code,omitempty"`
	LocationTypeID   FlexID   `json:"locationTypeId,omitempty"`
	LocationTypeName string   `json:"locationTypeName,omitempty"`
	X                *float64 `json:"x,omitempty"`
	Y                *float64 `json:"y,omitempty"`
	Z                *float64 `json:"z,omitempty"`
	BlockID          FlexID   `json:"blockId,omitempty"`
	BlockName        string   `json:"blockName,omitempty"`
	Description      string   `json:"description,omitempty"`
	Status           string   `json:"status"`
	CreateTime       string   `json:"createTime,omitempty"`
}

// MapFile is a lightweight description of a stored map document.
type MapFile struct {
	ID        string    `json:"id"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapSummary is the catalog view of a map document.
type MapSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	Checksum    string    `json:"checksum"`
	Layers      int       `json:"layers"`
	Points      int       `json:"points"`
	Paths       int       `json:"paths"`
	Locations   int       `json:"locations"`
	UpdatedAt   time.Time `json:"updated_at"`
}
