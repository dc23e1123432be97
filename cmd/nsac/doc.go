// Command nsac bootstraps isolated Python environments for the note
// sequence and arrangement classifier and manages its map dataset.
package main
