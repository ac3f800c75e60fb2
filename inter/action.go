package inter

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"

	"github.com/atsproto/go-ats/utils/canon"
)

// ActionKind discriminates the versioned action codecs the kernel accepts.
// The semantic effect of an action is opaque to the kernel; only the digest
// of its descriptor enters a receipt. The zero value is KindUnknown, so an
// uninitialized action always fails closed.
type ActionKind uint8

const (
	// KindUnknown is the fail-closed variant: digesting it is an error.
	KindUnknown ActionKind = iota
	// KindObserve reads from the runtime's I/O component.
	KindObserve
	// KindEmit writes to the runtime's I/O component.
	KindEmit
	// KindPlan rewrites the runtime's plan component.
	KindPlan
	// KindPolicyUpdate rewrites the runtime's policy component.
	KindPolicyUpdate
)

// maxCodecVersion is the newest action codec version this kernel accepts,
// per kind. A claim carrying a newer version must be rejected, not decoded
// on a best-effort basis.
var maxCodecVersion = map[ActionKind]uint16{
	KindObserve:      1,
	KindEmit:         1,
	KindPlan:         1,
	KindPolicyUpdate: 1,
}

// ErrUnsupportedActionCodec is returned when an action's kind is unknown or
// its codec version is outside the supported range.
var ErrUnsupportedActionCodec = errors.New("inter: unsupported action kind or codec version")

// String renders the wire name of the kind.
func (k ActionKind) String() string {
	switch k {
	case KindObserve:
		return "observe"
	case KindEmit:
		return "emit"
	case KindPlan:
		return "plan"
	case KindPolicyUpdate:
		return "policy-update"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Action is a versioned, typed operation descriptor proposed by the
// runtime. Its payload is opaque bytes; the kernel never interprets it.
type Action struct {
	Kind    ActionKind
	Version uint16
	Payload []byte
}

// Validate reports whether the action uses a known kind and a supported
// codec version.
func (a Action) Validate() error {
	max, ok := maxCodecVersion[a.Kind]
	if !ok || a.Version == 0 || a.Version > max {
		return ErrUnsupportedActionCodec
	}
	return nil
}

// Digest returns the content-addressed identifier of the action descriptor.
// Unknown kinds and unsupported versions are rejected here, before any
// digest exists for them to hide behind.
func (a Action) Digest() (hash.Hash, error) {
	if err := a.Validate(); err != nil {
		return hash.Hash{}, err
	}
	return canon.MustHashTagged(TagActionDigest, canon.Map{
		"kind":    canon.String(a.Kind.String()),
		"version": canon.Uint(a.Version),
		"payload": canon.Bytes(a.Payload),
	}), nil
}
