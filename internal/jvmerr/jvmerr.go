// Package jvmerr translates JVMTI status codes into a closed set of error
// kinds. Every native call result passes through Wrap or Check at the call
// site; nothing above this package looks at raw codes.
package jvmerr

import (
	"fmt"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Error is a translated JVMTI status. The zero value is None, the success
// sentinel; it is never returned as a non-nil error by Check.
type Error int

const (
	None Error = iota
	InvalidThread
	InvalidThreadGroup
	InvalidPriority
	ThreadNotSuspended
	ThreadSuspended
	ThreadNotAlive
	InvalidObject
	InvalidClass
	ClassNotPrepared
	InvalidMethodID
	InvalidLocation
	InvalidFieldID
	InvalidModule
	NoMoreFrames
	OpaqueFrame
	TypeMismatch
	InvalidSlot
	Duplicate
	NotFound
	InvalidMonitor
	NotMonitorOwner
	Interrupt
	InvalidClassFormat
	CircularClassDefinition
	FailsVerification
	UnsupportedRedefinitionMethodAdded
	UnsupportedRedefinitionSchemaChange
	InvalidTypestate
	UnsupportedRedefinitionHierarchyChange
	UnsupportedRedefinitionMethodDeleted
	UnsupportedVersion
	NamesDontMatch
	UnsupportedRedefinitionClassModifiersChanged
	UnsupportedRedefinitionMethodModifiersChanged
	UnsupportedRedefinitionClassAttributeChanged
	UnsupportedOperation
	UnmodifiableClass
	UnmodifiableModule
	NotAvailable
	MustPossessCapability
	NullPointer
	AbsentInformation
	InvalidEventType
	IllegalArgument
	NativeMethod
	ClassLoaderUnsupported
	OutOfMemory
	AccessDenied
	WrongPhase
	Internal
	UnattachedThread
	InvalidEnvironment

	// Unsupported means the environment's function table has no entry for
	// the requested operation. No native call was made.
	Unsupported

	// Unknown is any status code outside the documented set.
	Unknown
)

type entry struct {
	code native.ErrorCode
	name string
}

// table is indexed by Error; codes are the jvmtiError values from jvmti.h.
var table = [...]entry{
	None:                                          {0, "NONE"},
	InvalidThread:                                 {10, "INVALID_THREAD"},
	InvalidThreadGroup:                            {11, "INVALID_THREAD_GROUP"},
	InvalidPriority:                               {12, "INVALID_PRIORITY"},
	ThreadNotSuspended:                            {13, "THREAD_NOT_SUSPENDED"},
	ThreadSuspended:                               {14, "THREAD_SUSPENDED"},
	ThreadNotAlive:                                {15, "THREAD_NOT_ALIVE"},
	InvalidObject:                                 {20, "INVALID_OBJECT"},
	InvalidClass:                                  {21, "INVALID_CLASS"},
	ClassNotPrepared:                              {22, "CLASS_NOT_PREPARED"},
	InvalidMethodID:                               {23, "INVALID_METHODID"},
	InvalidLocation:                               {24, "INVALID_LOCATION"},
	InvalidFieldID:                                {25, "INVALID_FIELDID"},
	InvalidModule:                                 {26, "INVALID_MODULE"},
	NoMoreFrames:                                  {31, "NO_MORE_FRAMES"},
	OpaqueFrame:                                   {32, "OPAQUE_FRAME"},
	TypeMismatch:                                  {34, "TYPE_MISMATCH"},
	InvalidSlot:                                   {35, "INVALID_SLOT"},
	Duplicate:                                     {40, "DUPLICATE"},
	NotFound:                                      {41, "NOT_FOUND"},
	InvalidMonitor:                                {50, "INVALID_MONITOR"},
	NotMonitorOwner:                               {51, "NOT_MONITOR_OWNER"},
	Interrupt:                                     {52, "INTERRUPT"},
	InvalidClassFormat:                            {60, "INVALID_CLASS_FORMAT"},
	CircularClassDefinition:                       {61, "CIRCULAR_CLASS_DEFINITION"},
	FailsVerification:                             {62, "FAILS_VERIFICATION"},
	UnsupportedRedefinitionMethodAdded:            {63, "UNSUPPORTED_REDEFINITION_METHOD_ADDED"},
	UnsupportedRedefinitionSchemaChange:           {64, "UNSUPPORTED_REDEFINITION_SCHEMA_CHANGE"},
	InvalidTypestate:                              {65, "INVALID_TYPESTATE"},
	UnsupportedRedefinitionHierarchyChange:        {66, "UNSUPPORTED_REDEFINITION_HIERARCHY_CHANGE"},
	UnsupportedRedefinitionMethodDeleted:          {67, "UNSUPPORTED_REDEFINITION_METHOD_DELETED"},
	UnsupportedVersion:                            {68, "UNSUPPORTED_VERSION"},
	NamesDontMatch:                                {69, "NAMES_DONT_MATCH"},
	UnsupportedRedefinitionClassModifiersChanged:  {70, "UNSUPPORTED_REDEFINITION_CLASS_MODIFIERS_CHANGED"},
	UnsupportedRedefinitionMethodModifiersChanged: {71, "UNSUPPORTED_REDEFINITION_METHOD_MODIFIERS_CHANGED"},
	UnsupportedRedefinitionClassAttributeChanged:  {72, "UNSUPPORTED_REDEFINITION_CLASS_ATTRIBUTE_CHANGED"},
	UnsupportedOperation:                          {73, "UNSUPPORTED_OPERATION"},
	UnmodifiableClass:                             {79, "UNMODIFIABLE_CLASS"},
	UnmodifiableModule:                            {80, "UNMODIFIABLE_MODULE"},
	NotAvailable:                                  {98, "NOT_AVAILABLE"},
	MustPossessCapability:                         {99, "MUST_POSSESS_CAPABILITY"},
	NullPointer:                                   {100, "NULL_POINTER"},
	AbsentInformation:                             {101, "ABSENT_INFORMATION"},
	InvalidEventType:                              {102, "INVALID_EVENT_TYPE"},
	IllegalArgument:                               {103, "ILLEGAL_ARGUMENT"},
	NativeMethod:                                  {104, "NATIVE_METHOD"},
	ClassLoaderUnsupported:                        {106, "CLASS_LOADER_UNSUPPORTED"},
	OutOfMemory:                                   {110, "OUT_OF_MEMORY"},
	AccessDenied:                                  {111, "ACCESS_DENIED"},
	WrongPhase:                                    {112, "WRONG_PHASE"},
	Internal:                                      {113, "INTERNAL"},
	UnattachedThread:                              {115, "UNATTACHED_THREAD"},
	InvalidEnvironment:                            {116, "INVALID_ENVIRONMENT"},
	Unsupported:                                   {-1, "UNSUPPORTED"},
	Unknown:                                       {-1, "UNKNOWN"},
}

var byCode = func() map[native.ErrorCode]Error {
	m := make(map[native.ErrorCode]Error, len(table))
	for e := None; e < Unsupported; e++ {
		m[table[e].code] = e
	}
	return m
}()

// Wrap translates a native status code. Codes outside the documented set
// map to Unknown.
func Wrap(code native.ErrorCode) Error {
	if e, ok := byCode[code]; ok {
		return e
	}
	return Unknown
}

// Check returns nil for a successful status and the translated Error otherwise.
func Check(code native.ErrorCode) error {
	if e := Wrap(code); e != None {
		return e
	}
	return nil
}

// Code returns the native status code for e, or -1 for Unsupported and Unknown.
func (e Error) Code() native.ErrorCode {
	if e < 0 || int(e) >= len(table) {
		return -1
	}
	return table[e].code
}

// String returns the JVMTI_ERROR_* suffix for e.
func (e Error) String() string {
	if e < 0 || int(e) >= len(table) {
		return fmt.Sprintf("ERROR(%d)", int(e))
	}
	return table[e].name
}

func (e Error) Error() string {
	switch e {
	case Unsupported:
		return "jvmti: operation not implemented by this environment"
	case Unknown:
		return "jvmti: unrecognized error code"
	}
	return fmt.Sprintf("jvmti: %s (%d)", e.String(), e.Code())
}
