// Package docstore is the data-access layer: collection-scoped find, insert,
// update, delete and aggregate operations over loosely typed documents.
//
// Two backends implement Store. SQLiteStore keeps every collection in one
// JSON table managed by the migrations package; MongoStore maps collections
// one to one. Both expose the same document shape: timestamps as Time values
// and the storage-internal identifier as a string under "_id".
//
// Filters are built incrementally and only constrain what was added:
//
//	f := docstore.NewFilter().
//	    EqIfSet("sensor_id", q.Get("sensor_id")).
//	    Range("timestamp", from, to)
//	docs, err := store.Find(ctx, docstore.Measurements, f, docstore.FindOptions{
//	    SortField: "timestamp", Descending: true, Limit: 1000,
//	})
package docstore
