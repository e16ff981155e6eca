// Package thread turns native thread handles and jvmtiThreadInfo records into
// owned, typed snapshots.
package thread

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/sureshkrishnan-v/jvmpulse/internal/jvmerr"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// MaxNameLen bounds the scan for the NUL terminator of a native name buffer.
const MaxNameLen = 64 << 10

// ID identifies a VM thread. It wraps a handle the VM owns and is only valid
// for the duration of the callback or query that produced it.
type ID struct {
	handle native.Thread
}

// NewID wraps a native thread handle.
func NewID(h native.Thread) ID { return ID{handle: h} }

// Native returns the wrapped handle.
func (id ID) Native() native.Thread { return id.handle }

func (id ID) String() string { return fmt.Sprintf("thread@%#x", uintptr(id.handle)) }

// Thread is a point-in-time snapshot of a VM thread's metadata.
type Thread struct {
	ID       ID
	Name     string
	Priority int32
	IsDaemon bool
}

// Info queries the metadata of one thread. The handle is assumed valid for
// the duration of the call.
func Info(env *native.Env, id native.Thread) (Thread, error) {
	if env == nil || env.GetThreadInfo == nil {
		return Thread{}, jvmerr.Unsupported
	}

	var info native.ThreadInfo
	if err := jvmerr.Check(env.GetThreadInfo(id, &info)); err != nil {
		return Thread{}, err
	}

	name := decodeName(info.Name)
	if info.Name != nil && env.Deallocate != nil {
		env.Deallocate(info.Name)
	}

	return Thread{
		ID:       NewID(id),
		Name:     name,
		Priority: info.Priority,
		IsDaemon: info.IsDaemon != 0,
	}, nil
}

// All returns a snapshot of every live thread.
func All(env *native.Env) ([]Thread, error) {
	if env == nil || env.GetAllThreads == nil {
		return nil, jvmerr.Unsupported
	}

	var handles []native.Thread
	if err := jvmerr.Check(env.GetAllThreads(&handles)); err != nil {
		return nil, err
	}

	threads := make([]Thread, 0, len(handles))
	for _, h := range handles {
		t, err := Info(env, h)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", NewID(h), err)
		}
		threads = append(threads, t)
	}
	return threads, nil
}

// decodeName copies a NUL-terminated native buffer into a Go string.
// A nil buffer decodes to "". Invalid UTF-8 is replaced, not rejected.
func decodeName(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for n < MaxNameLen && *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return strings.ToValidUTF8(string(unsafe.Slice(p, n)), "�")
}
