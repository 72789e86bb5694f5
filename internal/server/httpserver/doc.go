// Package httpserver provides the HTTP listener of a pebbl process.
//
// One listener per process serves the message endpoint its peers deliver
// to, the Prometheus /metrics endpoint and a /healthz probe. Every route is
// wrapped in the request-id and panic-recovery middleware; the message
// route logs at debug level only since it carries every search message.
package httpserver
