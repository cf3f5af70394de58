package core

import (
	"encoding/json"
	"time"

	"github.com/zenithphoto/catalog/internal/payload"
)

// Flag is the pick state of an image.
type Flag string

// Image pick flags
const (
	FlagPicked   Flag = "picked"
	FlagRejected Flag = "rejected"
)

// ColorLabel is one of the seven named organizational colors.
type ColorLabel string

// Color labels
const (
	LabelRed    ColorLabel = "red"
	LabelYellow ColorLabel = "yellow"
	LabelGreen  ColorLabel = "green"
	LabelBlue   ColorLabel = "blue"
	LabelPurple ColorLabel = "purple"
	LabelOrange ColorLabel = "orange"
	LabelTeal   ColorLabel = "teal"
)

// CatalogInfo is the singleton bootstrap record of a catalog.
type CatalogInfo struct {
	SchemaVersion int64      `json:"schema_version"`
	CatalogUUID   string     `json:"catalog_uuid"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastOpened    *time.Time `json:"last_opened,omitempty"`
}

// Folder is a tracked source directory containing imported images.
type Folder struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Image is the core catalog entity. Nil pointer fields are NULL in storage.
type Image struct {
	ID             int64           `json:"id"`
	FolderID       int64           `json:"folder_id"`
	Filename       string          `json:"filename"`
	OriginalPath   string          `json:"original_path"`
	SidecarPath    *string         `json:"sidecar_path,omitempty"`
	SidecarHash    *string         `json:"sidecar_hash,omitempty"`
	Filesize       *int64          `json:"filesize,omitempty"`
	FileHash       *string         `json:"file_hash,omitempty"`
	FileModifiedAt *time.Time      `json:"file_modified_at,omitempty"`
	ImportedAt     time.Time       `json:"imported_at"`
	CapturedAt     *time.Time      `json:"captured_at,omitempty"`
	CameraMake     *string         `json:"camera_make,omitempty"`
	CameraModel    *string         `json:"camera_model,omitempty"`
	LensModel      *string         `json:"lens_model,omitempty"`
	FocalLength    *float64        `json:"focal_length,omitempty"`
	Aperture       *float64        `json:"aperture,omitempty"`
	ShutterSpeed   *float64        `json:"shutter_speed,omitempty"`
	ISO            *int64          `json:"iso,omitempty"`
	Orientation    *int64          `json:"orientation,omitempty"`
	GPSLatitude    *float64        `json:"gps_latitude,omitempty"`
	GPSLongitude   *float64        `json:"gps_longitude,omitempty"`
	GPSAltitude    *float64        `json:"gps_altitude,omitempty"`
	Rating         *int64          `json:"rating,omitempty"`
	Flag           *Flag           `json:"flag,omitempty"`
	ColorLabel     *ColorLabel     `json:"color_label,omitempty"`
	Metadata       json.RawMessage `json:"metadata_json,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ImportAttrs carries the importer-supplied fields for a new image. The
// store validates and persists them; extraction happens upstream.
type ImportAttrs struct {
	Filename       string          `validate:"required"`
	OriginalPath   string          `validate:"required"`
	SidecarPath    *string
	SidecarHash    *string
	Filesize       *int64          `validate:"omitempty,gte=0"`
	FileHash       *string
	FileModifiedAt *time.Time
	CapturedAt     *time.Time
	CameraMake     *string
	CameraModel    *string
	LensModel      *string
	FocalLength    *float64        `validate:"omitempty,gt=0"`
	Aperture       *float64        `validate:"omitempty,gt=0"`
	ShutterSpeed   *float64        `validate:"omitempty,gt=0"`
	ISO            *int64          `validate:"omitempty,gt=0"`
	Orientation    *int64          `validate:"omitempty,gte=1,lte=8"`
	GPSLatitude    *float64        `validate:"omitempty,gte=-90,lte=90"`
	GPSLongitude   *float64        `validate:"omitempty,gte=-180,lte=180"`
	GPSAltitude    *float64
	Rating         *int64          `validate:"omitempty,gte=0,lte=5"`
	Flag           *Flag           `validate:"omitempty,oneof=picked rejected"`
	ColorLabel     *ColorLabel     `validate:"omitempty,oneof=red yellow green blue purple orange teal"`
	Metadata       json.RawMessage
}

// MetadataPatch is a partial image update: nil fields are left unchanged.
// Rating, flag and color label have dedicated setters that can also clear.
type MetadataPatch struct {
	Filename       *string
	SidecarPath    *string
	SidecarHash    *string
	Filesize       *int64     `validate:"omitempty,gte=0"`
	FileHash       *string
	FileModifiedAt *time.Time
	CapturedAt     *time.Time
	CameraMake     *string
	CameraModel    *string
	LensModel      *string
	FocalLength    *float64   `validate:"omitempty,gt=0"`
	Aperture       *float64   `validate:"omitempty,gt=0"`
	ShutterSpeed   *float64   `validate:"omitempty,gt=0"`
	ISO            *int64     `validate:"omitempty,gt=0"`
	Orientation    *int64     `validate:"omitempty,gte=1,lte=8"`
	GPSLatitude    *float64   `validate:"omitempty,gte=-90,lte=90"`
	GPSLongitude   *float64   `validate:"omitempty,gte=-180,lte=180"`
	GPSAltitude    *float64
	Metadata       json.RawMessage
}

// EditState is the complete non-destructive adjustment set for one image.
// ApplyEdit replaces the stored state wholesale; nil fields clear their
// columns.
type EditState struct {
	Exposure     *float64              `json:"exposure,omitempty"`
	Contrast     *float64              `json:"contrast,omitempty"`
	Highlights   *float64              `json:"highlights,omitempty"`
	Shadows      *float64              `json:"shadows,omitempty"`
	Whites       *float64              `json:"whites,omitempty"`
	Blacks       *float64              `json:"blacks,omitempty"`
	Vibrance     *float64              `json:"vibrance,omitempty"`
	Saturation   *float64              `json:"saturation,omitempty"`
	Temperature  *float64              `json:"temperature,omitempty"`
	Tint         *float64              `json:"tint,omitempty"`
	Texture      *float64              `json:"texture,omitempty"`
	Clarity      *float64              `json:"clarity,omitempty"`
	Dehaze       *float64              `json:"dehaze,omitempty"`
	ToneCurve    *payload.ToneCurve    `json:"tone_curve,omitempty"`
	ColorGrading *payload.ColorGrading `json:"color_grading,omitempty"`
	Crop         *payload.Crop         `json:"crop,omitempty"`
	Masking      *payload.MaskStack    `json:"masking,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// EditHistoryEntry is one immutable snapshot in the append-only edit ledger.
type EditHistoryEntry struct {
	ID       int64           `json:"id"`
	ImageID  int64           `json:"image_id"`
	Snapshot json.RawMessage `json:"edits_json"`
	CreatedAt time.Time      `json:"created_at"`
}

// Keyword is an entry in the global tag vocabulary.
type Keyword struct {
	ID      int64  `json:"id"`
	Keyword string `json:"keyword"`
}

// Collection is a user-defined, optionally nested grouping of images.
type Collection struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership records an image's position within a collection.
type Membership struct {
	CollectionID int64     `json:"collection_id"`
	ImageID      int64     `json:"image_id"`
	Position     int64     `json:"position"`
	AddedAt      time.Time `json:"added_at"`
}

// Thumbnail holds the two derived thumbnail tiers for one image.
type Thumbnail struct {
	ImageID   int64     `json:"image_id"`
	Thumb256  []byte    `json:"-"`
	Thumb1024 []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preview holds the derived full preview blob for one image.
type Preview struct {
	ImageID   int64     `json:"image_id"`
	Blob      []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
