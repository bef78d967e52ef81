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
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case sceneError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	var serr sceneError
	if errors.As(err, &serr) {
		return serr.retriable
	}
	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

func WrapErrAsInputError(err error) error {
	if merr, ok := err.(sceneError); ok {
		WithErrorType(InputError)(&merr)
		return merr
	}
	return err
}

func GetErrorType(err error) ErrorType {
	var serr sceneError
	if errors.As(err, &serr) {
		return serr.errType
	}
	return SystemError
}

// Service 相关错误封装。
func WrapErrServiceInternal(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceInternal, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// IO 相关错误封装。
// 文件不存在、无权限等文件系统错误统一归为 ErrIoFailed，便于调用方与数据损坏区分。
func WrapErrIoFailed(path string, cause error, msg ...string) error {
	desc := "unknown"
	if cause != nil {
		desc = cause.Error()
	}
	err := wrapFieldsWithDesc(ErrIoFailed, desc, value("path", path))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrIoUnexpectEOF(path string, cause error) error {
	return wrapFieldsWithDesc(ErrIoUnexpectEOF, cause.Error(), value("path", path))
}

// Parameter 相关错误封装。
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmtMsg string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmtMsg, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Visitor 相关错误封装。
func WrapErrVisitorDuplicateRegion(path string, name string) error {
	return wrapFields(ErrVisitorDuplicateRegion, value("region", path), value("name", name))
}

func WrapErrVisitorDuplicateField(path string, name string) error {
	return wrapFields(ErrVisitorDuplicateField, value("region", path), value("field", name))
}

func WrapErrVisitorMissingRegion(path string, name string) error {
	return wrapFields(ErrVisitorMissingRegion, value("region", path), value("name", name))
}

func WrapErrVisitorMissingField(path string, name string) error {
	return wrapFields(ErrVisitorMissingField, value("region", path), value("field", name))
}

func WrapErrVisitorTypeMismatch(path string, name string, expected, actual any) error {
	return wrapFields(ErrVisitorTypeMismatch,
		value("region", path),
		value("field", name),
		value("expected", expected),
		value("actual", actual),
	)
}

func WrapErrVisitorMalformedData(offset int, reason string) error {
	return wrapFieldsWithDesc(ErrVisitorMalformedData, reason, value("offset", offset))
}

// WrapErrVisitorMalformedRegion 用于区域内容自相矛盾的情况，例如记录的元素数多于实际存储的条目。
func WrapErrVisitorMalformedRegion(path string, reason string) error {
	return wrapFieldsWithDesc(ErrVisitorMalformedData, reason, value("region", path))
}

func WrapErrVisitorVersionMismatch(version string, supported string) error {
	return wrapFields(ErrVisitorVersionMismatch,
		value("version", version),
		value("supported", supported),
	)
}

func WrapErrVisitorModeMismatch(expected, actual any, op string) error {
	return wrapFieldsWithDesc(ErrVisitorModeMismatch, op,
		value("expected", expected),
		value("actual", actual),
	)
}

// Handle 相关错误封装。
func WrapErrHandleInvalid(index, generation uint32, msg ...string) error {
	err := wrapFields(ErrHandleInvalid,
		value("index", index),
		value("generation", generation),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Scene 相关错误封装。
func WrapErrSceneNotFound(scene any, msg ...string) error {
	err := wrapFields(ErrSceneNotFound, value("scene", scene))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrSceneNodeNotFound(node any, msg ...string) error {
	err := wrapFields(ErrSceneNodeNotFound, value("node", node))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Loader 相关错误封装。
func WrapErrLoaderClosed(path string) error {
	return wrapFields(ErrLoaderClosed, value("path", path))
}

// Plugin 相关错误封装。
func WrapErrPluginDuplicateScript(name string) error {
	return wrapFields(ErrPluginDuplicateScript, value("script", name))
}

func WrapErrPluginUnknownScript(name string) error {
	return wrapFields(ErrPluginUnknownScript, value("script", name))
}

func WrapErrOperationNotSupported(op string, msg ...string) error {
	err := wrapFields(ErrOperationNotSupported, value("operation", op))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err sceneError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err sceneError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}
