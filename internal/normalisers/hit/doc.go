// Package hit converts raw provider hits into items.
//
// Conversion is pure and deterministic: the same RawHit always yields the
// same Item. Source URLs are canonicalised before they are hashed into
// item ids, so the same page reported by two providers with different
// tracking parameters, hosts or trailing slashes gets the same id.
package hit
