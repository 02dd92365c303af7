// Package idgen generates compact, roughly time-ordered session IDs.
package idgen

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"sync/atomic"
	"time"
)

var (
	// sequence disambiguates IDs generated within the same second
	sequence uint32

	// base32 without padding keeps the IDs short and log-friendly
	encoding = base32.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567").WithPadding(base32.NoPadding)
)

// New returns a new ID: 4 bytes of truncated unix time, 2 bytes of an
// atomic sequence counter and 4 bytes of random data, base32-encoded to
// 16 lowercase characters.
func New() string {
	id := make([]byte, 10)

	timestamp := uint32(time.Now().Unix())
	id[0] = byte(timestamp >> 24)
	id[1] = byte(timestamp >> 16)
	id[2] = byte(timestamp >> 8)
	id[3] = byte(timestamp)

	seq := atomic.AddUint32(&sequence, 1) & 0xFFFF
	id[4] = byte(seq >> 8)
	id[5] = byte(seq)

	if _, err := rand.Read(id[6:]); err != nil {
		// crypto/rand failing is unrecoverable on every supported target;
		// fall back to more timestamp bits rather than aborting the accept.
		nano := uint32(time.Now().UnixNano())
		id[6] = byte(nano >> 24)
		id[7] = byte(nano >> 16)
		id[8] = byte(nano >> 8)
		id[9] = byte(nano)
	}

	return strings.ToLower(encoding.EncodeToString(id))
}
