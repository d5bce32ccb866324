// Package orchestration compiles operator-edited orchestration playlists into
// the step payload accepted by the show execution engine, and reconstructs
// editable playlists from payloads that were saved, imported, or written by
// hand.
//
// Everything in this package is synchronous and free of side effects. Catalogs
// are passed in as snapshots; the caller owns fetching and caching them.
package orchestration
