// Package server wires the application into a running HTTP service: it
// configures memory limits and libvips, builds the app, mounts the API
// behind the middleware stack, serves Prometheus metrics on their own
// port and shuts everything down when its context ends.
package server
