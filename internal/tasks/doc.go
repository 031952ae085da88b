// Package tasks resolves the origin of every artist in a saved-tracks library with real-time progress reporting.
//
// # Stages
//
// A [Pipeline] run moves through the phases listed by [Phase]:
//
//  1. Library acquisition : [LibrarySource] pages through saved tracks lazily, or a previous
//     output document is loaded from disk
//     - every page waits for a Spotify limiter slot and runs under the retry policy
//     - authentication failures abort immediately
//
//  2. Grouping : [GroupByArtist] buckets tracks by first credited artist, skipping local files
//
//  3. Resolution : [OriginResolver] looks each artist up, cache first
//     - misses acquire a MusicBrainz slot and search under the retry policy
//     - one matching candidate is success, several are ambiguous, none is not_found
//     - exhausted retries become an error record and never abort the run
//
//  4. Aggregation : [Merge] builds exactly one record per artist
//
// # Concurrency
//
// Artists are resolved by a bounded worker pool (errgroup with SetLimit). The shared
// rate limiter keeps request spacing intact regardless of the worker count.
//
// # Progress Reporting
//
// Updates are sent on a caller-supplied channel with select/default so reporting never blocks the run.
package tasks
