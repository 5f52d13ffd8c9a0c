package randomness

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/roach88/mpcgraph/internal/ir"
)

// Key is a 128-bit PRF key. It is the runtime value of a prf_key node,
// stored as an array of two u64 words.
type Key [2]uint64

// Value returns the key as a value of type ir.PRFKeyType.
func (k Key) Value() *ir.Tensor {
	return &ir.Tensor{Shape: []int64{2}, Elem: ir.UINT64, Data: []uint64{k[0], k[1]}}
}

// KeyFromValue reads a key back from a prf_key value.
func KeyFromValue(v ir.Value) (Key, error) {
	t, ok := v.(*ir.Tensor)
	if !ok || len(t.Data) != 2 || t.Elem != ir.UINT64 {
		return Key{}, fmt.Errorf("prf key must be %s", ir.PRFKeyType)
	}
	return Key{t.Data[0], t.Data[1]}, nil
}

// KeyRequest asks for the PRF key a party uses at one node evaluation.
type KeyRequest struct {
	Party    int
	Instance string
}

// Source supplies PRF keys. Implementations must be safe for concurrent use.
type Source interface {
	Key(ctx context.Context, req KeyRequest) (Key, error)
}

// CryptoSource draws every key from crypto/rand. Keys differ on every call,
// so shares of the same value differ across runs.
type CryptoSource struct {
	// Reader overrides crypto/rand.Reader. Nil means crypto/rand.
	Reader io.Reader
}

// Key implements Source.
func (s CryptoSource) Key(ctx context.Context, req KeyRequest) (Key, error) {
	if err := ctx.Err(); err != nil {
		return Key{}, err
	}
	r := s.Reader
	if r == nil {
		r = rand.Reader
	}
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Key{}, missing(req.Party, req.Instance, "reading entropy: %v", err)
	}
	return Key{binary.LittleEndian.Uint64(buf[:8]), binary.LittleEndian.Uint64(buf[8:])}, nil
}

// SeededSource derives every key from a seed, the party and the instance.
// The same seed reproduces a run exactly.
type SeededSource struct {
	seed []byte
}

// NewSeededSource creates a deterministic key source.
func NewSeededSource(seed []byte) *SeededSource {
	return &SeededSource{seed: append([]byte(nil), seed...)}
}

// Key implements Source.
func (s *SeededSource) Key(ctx context.Context, req KeyRequest) (Key, error) {
	if err := ctx.Err(); err != nil {
		return Key{}, err
	}
	r := stream(domainKey, s.seed, uint64(req.Party), req.Instance)
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Key{}, missing(req.Party, req.Instance, "deriving key: %v", err)
	}
	return Key{binary.LittleEndian.Uint64(buf[:8]), binary.LittleEndian.Uint64(buf[8:])}, nil
}

// Domain labels keep the streams of different uses independent.
const (
	domainKey    = "mpcgraph/prf-key/v1"
	domainPRF    = "mpcgraph/prf/v1"
	domainTriple = "mpcgraph/triple/v1"
	domainShare  = "mpcgraph/share/v1"
)

// stream returns a SHAKE256 output stream over a length-prefixed encoding of
// the domain and the parts, so no two part lists collide.
func stream(domain string, seed []byte, n uint64, label string) io.Reader {
	h := sha3.NewShake256()
	writePart(h, []byte(domain))
	writePart(h, seed)
	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], n)
	h.Write(nb[:])
	writePart(h, []byte(label))
	return h
}

func writePart(w io.Writer, p []byte) {
	var lb [8]byte
	binary.LittleEndian.PutUint64(lb[:], uint64(len(p)))
	w.Write(lb[:])
	w.Write(p)
}

// Fill draws a uniformly random value of type t from r. Every element is
// read as eight little-endian bytes and reduced into its ring.
func Fill(r io.Reader, t ir.Type) (ir.Value, error) {
	v := ir.Zero(t)
	var buf [8]byte
	for _, leaf := range ir.Leaves(v) {
		mask := leaf.Elem.Mask()
		for i := range leaf.Data {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			leaf.Data[i] = binary.LittleEndian.Uint64(buf[:]) & mask
		}
	}
	return v, nil
}

// NewStream returns a deterministic byte stream for a seed and label. It is
// the randomness behind seeded input sharing.
func NewStream(seed []byte, label string) io.Reader {
	return stream(domainShare, seed, 0, label)
}
