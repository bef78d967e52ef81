// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Service related
	ErrServiceInternal = newSceneError("service internal error", 5, false)

	// IO related
	ErrIoFailed      = newSceneError("IO failed", 1001, false)
	ErrIoUnexpectEOF = newSceneError("unexpected EOF", 1002, true)

	// Parameter related
	ErrParameterInvalid = newSceneError("invalid parameter", 1100, false)
	ErrParameterMissing = newSceneError("missing parameter", 1101, false)

	// Visitor related
	ErrVisitorDuplicateRegion = newSceneError("duplicate region", 3100, false)
	ErrVisitorDuplicateField  = newSceneError("duplicate field", 3101, false)
	ErrVisitorMissingRegion   = newSceneError("missing region", 3102, false)
	ErrVisitorMissingField    = newSceneError("missing field", 3103, false)
	ErrVisitorTypeMismatch    = newSceneError("field type mismatch", 3104, false)
	ErrVisitorMalformedData   = newSceneError("malformed data", 3105, false)
	ErrVisitorVersionMismatch = newSceneError("unsupported format version", 3106, false)
	// 在读模式下调用写接口（或反之）属于调用方编程错误。
	ErrVisitorModeMismatch = newSceneError("visitor mode mismatch", 3107, false)

	// Handle related
	ErrHandleInvalid = newSceneError("invalid handle", 3200, false)

	// Scene related
	ErrSceneNotFound     = newSceneError("scene not found", 3300, false)
	ErrSceneNodeNotFound = newSceneError("scene node not found", 3301, false)

	// Loader related
	ErrLoaderClosed = newSceneError("loader closed", 3400, false)

	// Plugin related
	ErrPluginDuplicateScript = newSceneError("script already registered", 3500, false)
	ErrPluginUnknownScript   = newSceneError("script not registered", 3501, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to sceneError
	errUnexpected = newSceneError("unexpected error", (1<<16)-1, false)

	// General
	ErrOperationNotSupported = newSceneError("unsupported operation", 3000, false)
)

type errorOption func(*sceneError)

func WithDetail(detail string) errorOption {
	return func(err *sceneError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *sceneError) {
		err.errType = etype
	}
}

type sceneError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newSceneError(msg string, code int32, retriable bool, options ...errorOption) sceneError {
	err := sceneError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e sceneError) code() int32 {
	return e.errCode
}

func (e sceneError) Error() string {
	return e.msg
}

func (e sceneError) Detail() string {
	return e.detail
}

func (e sceneError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(sceneError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
