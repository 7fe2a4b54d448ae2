package mediatypes

import (
	"path/filepath"
	"strings"
)

// Format is the true encoding of an image as classified from its content
// or, for declared metadata, from a filename or content type.
type Format int

const (
	// FormatUnrecognized is any content that matches no known signature.
	FormatUnrecognized Format = iota
	// FormatJPEG is a JPEG/JFIF image.
	FormatJPEG
	// FormatPNG is a PNG image.
	FormatPNG
	// FormatGIF is a GIF image.
	FormatGIF
	// FormatWEBP is a RIFF WebP image.
	FormatWEBP
	// FormatBMP is a Windows bitmap.
	FormatBMP
	// FormatHEIF is an ISO-BMFF HEIF/HEIC container.
	FormatHEIF
)

// String returns the lowercase format name used in logs and metric labels.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatGIF:
		return "gif"
	case FormatWEBP:
		return "webp"
	case FormatBMP:
		return "bmp"
	case FormatHEIF:
		return "heif"
	default:
		return "unrecognized"
	}
}

// AllFormats lists every recognized format, for metric initialization.
var AllFormats = []Format{FormatJPEG, FormatPNG, FormatGIF, FormatWEBP, FormatBMP, FormatHEIF, FormatUnrecognized}

// ImageExtensions maps accepted file extensions to their format.
var ImageExtensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".webp": FormatWEBP,
	".bmp":  FormatBMP,
	".heic": FormatHEIF,
	".heif": FormatHEIF,
}

// MimeTypes maps accepted content types to their format.
var MimeTypes = map[string]Format{
	"image/jpeg":     FormatJPEG,
	"image/jpg":      FormatJPEG,
	"image/pjpeg":    FormatJPEG,
	"image/png":      FormatPNG,
	"image/gif":      FormatGIF,
	"image/webp":     FormatWEBP,
	"image/bmp":      FormatBMP,
	"image/x-ms-bmp": FormatBMP,
	"image/heic":     FormatHEIF,
	"image/heif":     FormatHEIF,
}

// genericContentType is what browsers and CLIs send when they don't know.
const genericContentType = "application/octet-stream"

// FormatForExtension returns the format for a filename's extension.
func FormatForExtension(name string) Format {
	return ImageExtensions[strings.ToLower(filepath.Ext(name))]
}

// FormatForMIME returns the format for a content type, ignoring parameters.
func FormatForMIME(contentType string) Format {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return MimeTypes[ct]
}

// Declared resolves the format a caller claims for an upload. A specific
// content type wins; an empty or generic one falls back to the extension.
// A non-image content type yields FormatUnrecognized.
func Declared(name, contentType string) Format {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || strings.HasPrefix(ct, genericContentType) {
		return FormatForExtension(name)
	}
	return FormatForMIME(ct)
}

// Compatible reports whether a declared format agrees with the sniffed one.
// Unrecognized never matches anything, including itself.
func Compatible(declared, sniffed Format) bool {
	if declared == FormatUnrecognized || sniffed == FormatUnrecognized {
		return false
	}
	return declared == sniffed
}

// ContentType returns the canonical MIME type for a format.
func ContentType(f Format) string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWEBP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatHEIF:
		return "image/heif"
	default:
		return genericContentType
	}
}
