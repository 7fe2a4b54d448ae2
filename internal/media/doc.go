// Package media turns raw image bytes into upload-ready JPEG tiers.
//
// The stages are independent so each can be tested and swapped:
//   - [Classify] sniffs the true format from the first 12 bytes
//   - [Normalizer] decodes the source, transcoding HEIF to JPEG via libvips
//   - [Deriver] produces the full/medium/thumbnail ladder with imaging
//
// [ExtractMetadata] reads EXIF (GPS, capture time, camera) with imagemeta and
// [Checksum] fingerprints the original upload.
//
// libvips must be started with [InitVips] before HEIF inputs can be
// transcoded; without it HEIF normalization fails with a [TranscodeError].
package media
