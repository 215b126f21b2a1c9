// Package intake validates incoming media files and stages their bytes into
// uniquely named working files under the staging directory.
//
// Validation short-circuits on the first failed check and never touches the
// filesystem, so rejected uploads allocate nothing. Staged files belong to the
// job that created them; CleanStale reclaims anything a crashed job left
// behind.
package intake
