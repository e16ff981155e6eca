//go:build jvmti

// Command libjvmpulse is the JVMPulse agent, built as a shared library and
// loaded by the JVM:
//
//	java -agentpath:/opt/jvmpulse/libjvmpulse.so=config=/etc/jvmpulse.yaml -jar app.jar
package main

/*
#include <jni.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/agent"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native/cjvmti"
)

var (
	mu     sync.Mutex
	loaded *agent.Agent
)

// Agent_OnLoad is called by the VM during startup. Bad options abort VM
// startup; a runtime that fails to start only disables monitoring.
//
//export Agent_OnLoad
func Agent_OnLoad(vm *C.JavaVM, options *C.char, _ unsafe.Pointer) C.jint {
	mu.Lock()
	defer mu.Unlock()

	env, err := cjvmti.Attach(unsafe.Pointer(vm))
	if err != nil {
		fmt.Fprintf(os.Stderr, "jvmpulse: %v\n", err)
		return C.JNI_ERR
	}
	a, err := agent.Load(env, C.GoString(options))
	if err != nil {
		fmt.Fprintf(os.Stderr, "jvmpulse: %v\n", err)
		cjvmti.Detach()
		return C.JNI_ERR
	}
	if err := a.Start(context.Background()); err != nil {
		a.Logger.Error("JVMPulse failed to start, monitoring disabled", zap.Error(err))
		_ = a.Stop(context.Background())
		cjvmti.Detach()
		return C.JNI_OK
	}
	loaded = a
	return C.JNI_OK
}

// Agent_OnUnload is called by the VM as the library is unloaded.
//
//export Agent_OnUnload
func Agent_OnUnload(_ *C.JavaVM) {
	mu.Lock()
	defer mu.Unlock()
	if loaded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := loaded.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jvmpulse: %v\n", err)
	}
	loaded = nil
	cjvmti.Detach()
}

func main() {}
