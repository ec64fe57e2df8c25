package immich

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Asset is one photo or video record as reported by the server.
type Asset struct {
	ID               string
	OriginalFileName string
	OriginalPath     string
	Type             string
	MimeType         string
	FileSize         int64
	CreatedAt        *time.Time
	Exif             *Exif
	// Faces is set when the record embedded people annotations.
	Faces *int
}

// Exif holds the subset of EXIF data the classifier inspects.
type Exif struct {
	Width            int
	Height           int
	Make             string
	Model            string
	Software         string
	DateTimeOriginal *time.Time
	FileSize         int64
}

// Dimensions returns the known width and height, or zeros when absent.
func (a Asset) Dimensions() (int, int) {
	if a.Exif == nil {
		return 0, 0
	}
	return a.Exif.Width, a.Exif.Height
}

// Size returns the byte size from the asset record, falling back to EXIF.
func (a Asset) Size() int64 {
	if a.FileSize > 0 {
		return a.FileSize
	}
	if a.Exif != nil {
		return a.Exif.FileSize
	}
	return 0
}

// IsImage reports whether the asset is a still image.
func (a Asset) IsImage() bool {
	return a.Type == "" || strings.EqualFold(a.Type, "IMAGE")
}

// Face is a detected face annotation.
type Face struct {
	ID          string  `json:"id"`
	ImageWidth  int     `json:"imageWidth"`
	ImageHeight int     `json:"imageHeight"`
	Person      *Person `json:"person"`
}

// Person is the recognised person a face belongs to.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MetadataEntry is one key/value annotation attached to an asset.
type MetadataEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Page is one slice of the asset listing.
type Page struct {
	Assets []Asset
	// NextCursor is empty when no further pages remain.
	NextCursor string
}

// Statistics reports library-wide asset counts.
type Statistics struct {
	Images int `json:"images"`
	Videos int `json:"videos"`
	Total  int `json:"total"`
}

type wireAsset struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	OriginalFileName string    `json:"originalFileName"`
	OriginalPath     string    `json:"originalPath"`
	OriginalMimeType string    `json:"originalMimeType"`
	FileCreatedAt    string    `json:"fileCreatedAt"`
	ExifInfo         *wireExif `json:"exifInfo"`
	People           []Person  `json:"people"`
}

type wireExif struct {
	ExifImageWidth   int    `json:"exifImageWidth"`
	ExifImageHeight  int    `json:"exifImageHeight"`
	ImageWidth       int    `json:"imageWidth"`
	ImageHeight      int    `json:"imageHeight"`
	Make             string `json:"make"`
	Model            string `json:"model"`
	Software         string `json:"software"`
	DateTimeOriginal string `json:"dateTimeOriginal"`
	FileSizeInByte   int64  `json:"fileSizeInByte"`
}

func (w wireAsset) toAsset() Asset {
	asset := Asset{
		ID:               w.ID,
		OriginalFileName: w.OriginalFileName,
		OriginalPath:     w.OriginalPath,
		Type:             w.Type,
		MimeType:         w.OriginalMimeType,
		CreatedAt:        parseTime(w.FileCreatedAt),
	}
	if w.People != nil {
		count := len(w.People)
		asset.Faces = &count
	}
	if w.ExifInfo != nil {
		exif := &Exif{
			Width:            firstPositive(w.ExifInfo.ImageWidth, w.ExifInfo.ExifImageWidth),
			Height:           firstPositive(w.ExifInfo.ImageHeight, w.ExifInfo.ExifImageHeight),
			Make:             strings.TrimSpace(w.ExifInfo.Make),
			Model:            strings.TrimSpace(w.ExifInfo.Model),
			Software:         strings.TrimSpace(w.ExifInfo.Software),
			DateTimeOriginal: parseTime(w.ExifInfo.DateTimeOriginal),
			FileSize:         w.ExifInfo.FileSizeInByte,
		}
		asset.Exif = exif
		asset.FileSize = exif.FileSize
	}
	return asset
}

type searchResponse struct {
	Assets struct {
		Items    []wireAsset `json:"items"`
		NextPage pageToken   `json:"nextPage"`
	} `json:"assets"`
}

// pageToken accepts the nextPage value as a string, a number, or null.
type pageToken string

func (p *pageToken) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = pageToken(strings.TrimSpace(s))
		return nil
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		return err
	}
	*p = pageToken(raw)
	return nil
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
