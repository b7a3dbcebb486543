// Package domain defines the data model shared by every component of the
// AeroForge pipeline: the session state threaded stage to stage, the
// entities produced by collaborators, the stage lifecycle, and the error
// taxonomy. Every value held by these types is representable as a plain
// JSON tree (primitives, sequences, string-keyed maps) because session
// state crosses process and service boundaries.
package domain
