// Package attributes maps the named attributes of a session onto a single cache entry.
//
// The entry is encoded with encoding/gob, so concrete attribute types stored behind
// interface values must be registered with gob.Register before they can be replicated.
package attributes
