// Package dataset turns downloaded map archives into the on-disk layout the
// classifier's (future) training pipeline consumes: each map's level zip is
// extracted into its own directory under the filtered maps root.
package dataset
