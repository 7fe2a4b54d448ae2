// Package mediatypes holds the image format classification shared by the
// ingest pipeline, the HTTP layer and the CLI.
//
// It is dependency-free so any package can import it without creating
// import cycles.
//
// # Formats
//
// [Format] enumerates the accepted encodings plus [FormatUnrecognized].
// Content sniffing lives in the media package; this package only maps
// declared metadata (extensions and content types) to a Format:
//
//	declared := mediatypes.Declared("IMG_0001.HEIC", "")    // FormatHEIF
//	declared = mediatypes.Declared("a.png", "image/jpeg")   // FormatJPEG
//	declared = mediatypes.Declared("a.jpg", "text/plain")   // FormatUnrecognized
//
// [Compatible] decides whether a declaration agrees with sniffed content.
// Unrecognized never agrees with anything.
package mediatypes
