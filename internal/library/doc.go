// Package library turns the server's video list and the tracker's pending
// jobs into the rows the UI renders.
//
// Merge is pure and recomputed on every render. It never emits two entries
// for the same video id; a ready video always wins over its placeholder.
// Folder, search and sort helpers mirror the web client's filters.
package library
