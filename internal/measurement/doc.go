// Package measurement implements the time-stamped sensor readings: listing
// with sensor and date-range filters, per-sensor statistics, and create,
// update and delete by storage-internal id.
//
// Lists are ordered most recent first and capped by a limit. Newly created
// measurements are passed to the registered Sinks (the time-series mirror
// and the live WebSocket stream); a failing sink is logged and does not
// fail the write.
package measurement
