// Package doccodec maps documents of domain values to and from the
// extended-JSON wire form.
//
// Preprocess walks an ir.Value depth-first and writes the scalar types that
// JSON lacks as reserved singleton maps:
//
//	{"$date": <int ms>}            timestamps and (collections only) dates
//	{"$uuid": "<uuid>"}            collections only
//	{"$objectId": "<24 hex>"}      collections only
//	{"$binary": "<base64>"}        blobs, and vectors when binary encoding is on
//
// Values under a "$vector" key are vectors, except inside a projection.
// Table mode writes dates, times, timestamps and ids as strings, non-finite
// floats as "NaN"/"Infinity"/"-Infinity", and non-text-keyed maps as arrays
// of [key, value] pairs.
//
// Postprocess reverses the mapping. A map whose key set is exactly one of
// the reserved singletons is decoded as a scalar and never recursed into.
package doccodec
