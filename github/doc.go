// Package github is a small typed client for the parts of the GitHub REST
// API gitpress uses as a document store: repository contents, git trees and
// blobs, repository metadata, and the authenticated user.
//
// The client performs one HTTP request per call. It never retries and never
// sleeps on rate limits; callers classify *APIError values (see
// IsRateLimited, IsConflict, IsNotFound) and decide. Conditional GETs reuse
// ETags so unchanged resources come back as 304s, which GitHub does not
// count against the rate limit.
package github
