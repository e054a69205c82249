// Package export renders measurement lists as CSV, JSON or XLSX downloads.
package export
