/*
Package ingest turns a raw user-selected file into a set of JPEG tiers.

Each input passes four short-circuiting steps:

 1. size cap (TooLarge)
 2. magic-byte sniff, checked against the declared type (UnsupportedFormat)
 3. normalize, transcoding HEIF to JPEG (TranscodeFailed)
 4. derive the full, medium and thumbnail tiers (ResizeFailed when the
    full tier cannot be produced)

Refusals are returned as *Rejection; use ReasonOf to branch on the reason.
Accepted inputs also carry best-effort EXIF metadata and a BLAKE2b
checksum. Decode and resize work is bounded by a weighted semaphore so a
large batch cannot start more decoders than there are CPUs.
*/
package ingest
