// Package broadcast holds the per-room registry of open push channels on this instance
// and fans snapshots out to them.
//
// A Channel is created by Registry.Register and belongs to one room for its whole life.
// The transport drains Channel.Events and calls Channel.Close on any terminal path.
// A closed events stream tells the transport the registry dropped the channel (slow
// consumer or shutdown).
package broadcast
