// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (room.go, stamp.go, snapshot.go, broadcast.go) hold shared types and
// the interfaces consumed across packages. No implementation code beyond value constructors.
package domain
