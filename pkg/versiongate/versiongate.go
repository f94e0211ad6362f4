package versiongate

import (
	"encoding/binary"
	"fmt"

	"github.com/penumbra-zone/cnidarium-core/pkg/apperr"
	"github.com/penumbra-zone/cnidarium-core/pkg/metrics"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
)

// Key is the well-known nonverifiable key the gate reads and writes.
var Key = []byte("app_version")

const maxEncodedLen = 8

// Encode returns version as a little-endian integer with trailing zero
// bytes dropped. Version 0 encodes as an empty byte slice.
func Encode(version uint64) []byte {
	var buf [maxEncodedLen]byte
	binary.LittleEndian.PutUint64(buf[:], version)
	n := maxEncodedLen
	for n > 0 && buf[n-1] == 0 {
		n--
	}
	return append([]byte{}, buf[:n]...)
}

// Decode parses a little-endian, trailing-zero-trimmed version encoding.
// A value longer than 8 bytes is malformed.
func Decode(raw []byte) (uint64, error) {
	if len(raw) > maxEncodedLen {
		return 0, apperr.New(apperr.KindDecoding, fmt.Sprintf("app version encoding too long: %d bytes", len(raw)))
	}
	var buf [maxEncodedLen]byte
	copy(buf[:], raw)
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Check enforces the gate against the given Delta: a fresh store (no key
// present) accepts binaryVersion and stages it for write; an existing
// store refuses to proceed if its persisted version disagrees with
// binaryVersion.
func Check(d *store.Delta, binaryVersion uint64) error {
	raw, err := d.NonverifiableGet(Key)
	if err != nil {
		return apperr.Wrap(apperr.KindResource, "read app version", err)
	}
	if raw == nil {
		return d.NonverifiablePut(Key, Encode(binaryVersion))
	}
	persisted, err := Decode(raw)
	if err != nil {
		return err
	}
	if persisted != binaryVersion {
		metrics.VersionGateRejectionsTotal.Inc()
		return apperr.New(apperr.KindProtocolVersion,
			fmt.Sprintf("binary app version %d does not match persisted version %d", binaryVersion, persisted))
	}
	return nil
}
