// Package localapi serves the document Data API commands in process, on top
// of the SQLite document store.
//
// A Server hands out one command.Sender per collection, so everything that
// talks to a remote endpoint through internal/transport can run against a
// local database file instead: the cursor, the collection methods and the
// CLI all work unchanged.
//
// Supported commands:
//
//	find, findOne, countDocuments
//	insertOne, insertMany
//	updateOne, updateMany, findOneAndReplace
//	deleteOne, deleteMany
//
// Filters match on escaped dotted paths, unrolling lists the way
// keypath.Extract does, and accept $eq, $ne, $in, $nin, $exists, $and and
// $or. Updates accept $set, $unset, $inc, $push and $setOnInsert.
//
// Reads are paged. A page-state token is the offset of the next page plus an
// xxhash checksum of the query it belongs to; a token presented with a
// different query is rejected. updateMany and deleteMany process bounded
// rounds and tell the client to continue through status.nextPageState and
// status.moreData.
//
// Commands run one at a time per Server.
package localapi
