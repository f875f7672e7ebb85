/*
Package composite builds sessions out of two independent cache mappings: one for the
session metadata and one for the session attributes.

The Factory keeps both entries consistent. A session is created metadata first and never
half created; metadata whose attributes went missing is an orphan, purged on FindValue and
left alone on TryValue. Manager layers the single-node session.Manager contract on top,
hiding expired sessions.
*/
package composite
