// Package beatsaver downloads community maps and their metadata from the
// BeatSaver API for the dataset pipeline.
//
// The client only speaks to the /maps/latest endpoint, paginating backwards
// in publish time. The downloader keeps a per-map directory registry under
// the output root: each map gets a meta.json plus its level archive, and a
// map found with metadata but no archive is resumed on the next run.
package beatsaver
