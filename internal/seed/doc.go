// Package seed generates reproducible demo data (experiments in five
// cities of the Provence-Alpes-Côte d'Azur region, their sensors and a
// history of hourly readings) and loads it into a document store.
//
// The same dataset backs the client's offline demo provider.
package seed
