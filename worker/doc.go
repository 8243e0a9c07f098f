// Package worker wraps one engine.Database behind a message protocol so the
// database can be driven from another goroutine or process.
//
// Requests are handled strictly one at a time. An each request streams one
// response per row followed by a single finished response, all carrying the
// request id, before the next request is looked at. Every failure is turned
// into an error response; the loop itself only stops when its input ends,
// its context is cancelled, or responses can no longer be delivered.
//
// On the wire every request and response is one JSON object per line:
//
//	{"id":1,"action":"exec","sql":"SELECT ? AS v","params":[42]}
//	{"id":1,"results":[{"columns":["v"],"values":[[42]]}]}
package worker
