// Package app is the application layer. Service implements the room and stamp use
// cases; BroadcastService turns room change triggers into fresh snapshots pushed to
// local channels and announced to peer instances; CommitBridge delivers triggers
// from committed write transactions.
package app
