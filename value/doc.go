/*
Package value implements the store of boxed values that travel between nodes.

A Box is a single-owner handle around one payload. Exactly one of Unbox or
Discard succeeds on a handle; any later call returns ErrConsumed. Handles are
never recycled, only the storage cells behind them are, so a stale handle can
never observe a different payload.

Storage cells come from an Allocator, which must be safe for concurrent use.
*/
package value
