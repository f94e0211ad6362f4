/*
Package versiongate implements the App-Version Gate (spec §4.7): a single
nonverifiable key recording the app version the store was last committed
under, encoded as a little-endian variable-length integer of at most 8
bytes with trailing zero bytes dropped (so version 0 encodes as a
zero-length value, and version 1 as a single 0x01 byte).

At startup, the running binary's compiled-in version is compared against
the persisted value: a fresh store (no key present) accepts any version and
writes it; an existing store whose persisted version disagrees with the
binary's version refuses to start (spec §8 scenario 6). A matching version
is a no-op.
*/
package versiongate
