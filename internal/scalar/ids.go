package scalar

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ObjectID is a 12-byte opaque identifier rendered as 24 lowercase hex chars.
type ObjectID [12]byte

var (
	objectIDCounter atomic.Uint32
	objectIDProcess = func() [5]byte {
		var b [5]byte
		_, _ = rand.Read(b[:])
		return b
	}()
)

// NewObjectID builds an id from the current second, a per-process random
// value and an incrementing counter.
func NewObjectID() ObjectID {
	return newObjectIDAt(time.Now())
}

func newObjectIDAt(t time.Time) ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:9], objectIDProcess[:])
	c := objectIDCounter.Add(1)
	id[9], id[10], id[11] = byte(c>>16), byte(c>>8), byte(c)
	return id
}

// ParseObjectID accepts exactly 24 hex characters (either case).
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 24 {
		return id, parseErr(KindObjectID, s, "object ids are 24 hex characters")
	}
	if _, err := hex.Decode(id[:], []byte(strings.ToLower(s))); err != nil {
		return ObjectID{}, parseErr(KindObjectID, s, "object ids are 24 hex characters")
	}
	return id, nil
}

// String returns the lowercase hex form.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// Time returns the creation second embedded in the id.
func (id ObjectID) Time() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0).UTC()
}

// ParseUUID accepts the canonical hyphenated form and the variants
// github.com/google/uuid understands.
func ParseUUID(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, parseErr(KindUUID, s, "%v", err)
	}
	return u, nil
}
