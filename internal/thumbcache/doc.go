// Package thumbcache is the shared thumbnail cache consulted by the cache and
// live extraction strategies.
//
// Thumbnails are stored as PNG files under <dir>/blobs and indexed in a SQLite
// database at <dir>/thumbcache.db. Entries are keyed by a BLAKE2b-256 hash of
// the cleaned source path plus the requested size, and are only served while
// the source's modification time matches the one recorded when the entry was
// written.
//
// A forced lookup always regenerates from the source through a Source, which
// in production is a media.Decoder. Failing to write an entry back is logged
// and never fails the lookup.
package thumbcache
