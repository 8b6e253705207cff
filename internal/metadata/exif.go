package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
)

// DefaultMaxFileSize limits how much of an image file is read.
const DefaultMaxFileSize = 32 * 1024 * 1024

// ErrNoExif is returned when an image carries no EXIF block.
var ErrNoExif = errors.New("no EXIF metadata")

// Category groups EXIF tags by what they reveal.
type Category string

const (
	// CategoryLocation covers GPS coordinates.
	CategoryLocation Category = "location"

	// CategoryDevice covers camera make and model.
	CategoryDevice Category = "device"

	// CategorySerial covers device serial numbers.
	CategorySerial Category = "serial"

	// CategorySoftware covers editing software and operating systems.
	CategorySoftware Category = "software"

	// CategoryAuthor covers author and copyright information.
	CategoryAuthor Category = "author"

	// CategoryTimestamp covers capture and edit times.
	CategoryTimestamp Category = "timestamp"

	// CategoryHost covers the name of the processing computer.
	CategoryHost Category = "host"
)

// sensitiveTags maps tag names to the category they disclose.
var sensitiveTags = map[string]Category{
	"GPSLatitude":        CategoryLocation,
	"GPSLongitude":       CategoryLocation,
	"GPSLatitudeRef":     CategoryLocation,
	"GPSLongitudeRef":    CategoryLocation,
	"GPSAltitude":        CategoryLocation,
	"Make":               CategoryDevice,
	"Model":              CategoryDevice,
	"SerialNumber":       CategorySerial,
	"CameraSerialNumber": CategorySerial,
	"BodySerialNumber":   CategorySerial,
	"LensSerialNumber":   CategorySerial,
	"Software":           CategorySoftware,
	"ProcessingSoftware": CategorySoftware,
	"Artist":             CategoryAuthor,
	"Author":             CategoryAuthor,
	"Copyright":          CategoryAuthor,
	"XPAuthor":           CategoryAuthor,
	"DateTimeOriginal":   CategoryTimestamp,
	"DateTimeDigitized":  CategoryTimestamp,
	"DateTime":           CategoryTimestamp,
	"HostComputer":       CategoryHost,
}

// Tag is one EXIF entry.
type Tag struct {
	// IFD is the IFD path the tag was found in, such as "IFD/Exif".
	IFD string `json:"ifd"`

	// Name is the standard tag name.
	Name string `json:"name"`

	// Value is the formatted tag value.
	Value string `json:"value"`
}

// Category returns what the tag discloses, or false for ordinary tags.
func (t Tag) Category() (Category, bool) {
	c, ok := sensitiveTags[t.Name]
	return c, ok
}

// Metadata is the EXIF content of one image.
type Metadata struct {
	// Path is the image file, empty when parsed from bytes.
	Path string `json:"path,omitempty"`

	// Tags holds every EXIF tag in file order.
	Tags []Tag `json:"tags"`
}

// Sensitive returns the tags that identify a place, a device or a person.
func (m *Metadata) Sensitive() []Tag {
	tags := make([]Tag, 0)
	for _, tag := range m.Tags {
		if _, ok := tag.Category(); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Lookup returns the first tag with the given name.
func (m *Metadata) Lookup(name string) (Tag, bool) {
	for _, tag := range m.Tags {
		if tag.Name == name {
			return tag, true
		}
	}
	return Tag{}, false
}

// ReadFile extracts the EXIF metadata of the image at path.
// It returns ErrNoExif when the file has no EXIF block.
func ReadFile(path string) (*Metadata, error) {
	f, err := os.Open(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, DefaultMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	md, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	md.Path = path
	return md, nil
}

// Parse extracts EXIF metadata from image bytes.
// It returns ErrNoExif when the data has no EXIF block.
func Parse(data []byte) (*Metadata, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, ErrNoExif
		}
		return nil, fmt.Errorf("failed to locate EXIF: %w", err)
	}
	if rawExif == nil {
		return nil, ErrNoExif
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EXIF: %w", err)
	}

	md := &Metadata{Tags: make([]Tag, 0, len(entries))}
	for _, entry := range entries {
		md.Tags = append(md.Tags, Tag{
			IFD:   entry.IfdPath,
			Name:  entry.TagName,
			Value: entry.Formatted,
		})
	}
	return md, nil
}
