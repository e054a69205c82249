// Package mongodb manages the MongoDB connection used when the platform runs
// with database.driver set to "mongodb".
//
// Connect retries the initial ping with exponential backoff so the API can
// start before the database container is ready. EnsureIndexes creates the
// unique business-identifier indexes and the query indexes for the
// experiments, sensor_devices, sensor_types and measurements collections.
package mongodb
