// Package metadata reads EXIF metadata from downloaded images.
//
// Images saved by a crawl often carry more than pixels: GPS coordinates,
// camera serial numbers, editing software and author names. This package
// extracts every EXIF tag and flags the ones that identify a place, a
// device or a person.
//
// Design decision: We use dsoprea/go-exif rather than decoding the image
// because EXIF lives in a TIFF structure that can be located without
// understanding the image format. This also covers TIFF and HEIC files
// that the standard image package cannot decode.
package metadata
