/*
Package observability exports session manager activity as Prometheus metrics.

A nil *Recorder is valid and records nothing, so components take one optionally.
*/
package observability
