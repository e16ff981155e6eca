//go:build jvmti

// Package cjvmti backs native.Env with a real JVMTI environment through cgo.
//
// Build with the JDK headers on the include path:
//
//	CGO_CFLAGS="-I$JAVA_HOME/include -I$JAVA_HOME/include/linux" go build -tags jvmti -buildmode=c-shared ./cmd/libjvmpulse
//
// One process hosts one agent, so the attached environment and its installed
// callback table are package state.
package cjvmti

/*
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// jvmtiVersion is the interface version requested from GetEnv.
const jvmtiVersion = C.jint(C.JVMTI_VERSION_1_2)

var (
	attached atomic.Pointer[session]

	// ErrAttached is returned by Attach when an environment already exists.
	ErrAttached = errors.New("jvmti environment already attached")
)

type session struct {
	raw   *C.jvmtiEnv
	env   *native.Env
	table atomic.Pointer[native.EventCallbacks]
}

// Attach obtains a JVMTI environment from a JavaVM* and returns its function
// table. vm must be the pointer passed to Agent_OnLoad or Agent_OnAttach.
func Attach(vm unsafe.Pointer) (*native.Env, error) {
	var raw *C.jvmtiEnv
	if rc := C.jp_get_env((*C.JavaVM)(vm), &raw, jvmtiVersion); rc != C.JNI_OK {
		return nil, fmt.Errorf("GetEnv(JVMTI_VERSION_1_2) failed: jni error %d", int(rc))
	}

	s := &session{raw: raw}
	s.env = s.build()
	if !attached.CompareAndSwap(nil, s) {
		return nil, ErrAttached
	}
	return s.env, nil
}

// Detach forgets the attached environment. Callbacks that are still
// delivered afterwards are dropped.
func Detach() {
	attached.Store(nil)
}

func (s *session) build() *native.Env {
	return &native.Env{
		GetVersionNumber: func(version *int32) native.ErrorCode {
			var v C.jint
			rc := C.jp_get_version_number(s.raw, &v)
			*version = int32(v)
			return native.ErrorCode(rc)
		},
		GetCapabilities: func(caps *native.Capabilities) native.ErrorCode {
			return native.ErrorCode(C.jp_get_capabilities(s.raw, unsafe.Pointer(caps)))
		},
		GetPotentialCapabilities: func(caps *native.Capabilities) native.ErrorCode {
			return native.ErrorCode(C.jp_get_potential_capabilities(s.raw, unsafe.Pointer(caps)))
		},
		AddCapabilities: func(caps *native.Capabilities) native.ErrorCode {
			return native.ErrorCode(C.jp_add_capabilities(s.raw, unsafe.Pointer(caps)))
		},
		RelinquishCapabilities: func(caps *native.Capabilities) native.ErrorCode {
			return native.ErrorCode(C.jp_relinquish_capabilities(s.raw, unsafe.Pointer(caps)))
		},
		SetEventCallbacks:        s.setEventCallbacks,
		SetEventNotificationMode: s.setEventNotificationMode,
		GetThreadInfo:            s.getThreadInfo,
		GetAllThreads:            s.getAllThreads,
		Deallocate: func(mem *byte) native.ErrorCode {
			return native.ErrorCode(C.jp_deallocate(s.raw, (*C.uchar)(unsafe.Pointer(mem))))
		},
	}
}

// setEventCallbacks publishes the Go table before the C table so that a slot
// the VM can reach always has a Go handler to forward to.
func (s *session) setEventCallbacks(cb *native.EventCallbacks) native.ErrorCode {
	var table native.EventCallbacks
	if cb != nil {
		table = *cb
	}
	prev := s.table.Swap(&table)
	rc := native.ErrorCode(C.jp_set_event_callbacks(s.raw, C.uint(slotMask(&table))))
	if rc != native.ErrNone {
		s.table.Store(prev)
	}
	return rc
}

func (s *session) setEventNotificationMode(mode native.Mode, kind native.EventKind, t native.Thread) native.ErrorCode {
	return native.ErrorCode(C.jp_set_event_notification_mode(s.raw, C.jint(mode), C.jint(kind), jthread(t)))
}

func (s *session) getThreadInfo(t native.Thread, info *native.ThreadInfo) native.ErrorCode {
	var (
		name     *C.char
		priority C.jint
		daemon   C.jboolean
		group    C.jthreadGroup
		loader   C.jobject
	)
	rc := native.ErrorCode(C.jp_get_thread_info(s.raw, jthread(t), &name, &priority, &daemon, &group, &loader))
	if rc != native.ErrNone {
		return rc
	}
	*info = native.ThreadInfo{
		Name:               (*byte)(unsafe.Pointer(name)),
		Priority:           int32(priority),
		IsDaemon:           uint8(daemon),
		ThreadGroup:        native.Object(uintptr(unsafe.Pointer(group))),
		ContextClassLoader: native.Object(uintptr(unsafe.Pointer(loader))),
	}
	return native.ErrNone
}

func (s *session) getAllThreads(threads *[]native.Thread) native.ErrorCode {
	var (
		count C.jint
		arr   *C.jthread
	)
	rc := native.ErrorCode(C.jp_get_all_threads(s.raw, &count, &arr))
	if rc != native.ErrNone {
		return rc
	}
	out := make([]native.Thread, int(count))
	if count > 0 {
		for i, t := range unsafe.Slice(arr, int(count)) {
			out[i] = native.Thread(uintptr(unsafe.Pointer(t)))
		}
	}
	if arr != nil {
		C.jp_deallocate(s.raw, (*C.uchar)(unsafe.Pointer(arr)))
	}
	*threads = out
	return native.ErrNone
}

func jthread(t native.Thread) C.jthread {
	return C.jthread(unsafe.Pointer(uintptr(t)))
}
