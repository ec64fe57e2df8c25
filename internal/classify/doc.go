// Package classify scores Immich assets against rule families that flag
// screenshots, web cache artifacts, recovered or duplicated files, corrupt
// images, and low quality thumbnails.
//
// The evaluator is additive: every rule family runs for every asset and each
// fired indicator contributes its weight to the confidence score, which is then
// clamped to [0,1]. Classify never fails. Lookups against the server and local
// thumbnail decoding that go wrong are recorded as evidence so the verdict still
// reflects every rule that could run.
package classify
