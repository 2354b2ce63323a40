// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import "errors"

// Failure classes. Every error returned by the connectors and the executor
// matches exactly one of these with errors.Is.
var (
	ErrAuthRequired          = errors.New("authentication required")
	ErrAuthInvalid           = errors.New("invalid authentication credential")
	ErrConnectionUnavailable = errors.New("connection unavailable")
	ErrQueryTimeout          = errors.New("query timeout")
	ErrQueryExecution        = errors.New("query execution error")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// ConnectorError represents errors specific to connector operations
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Kind          error
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the error's failure class.
func (e *ConnectorError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// WithKind sets the failure class and returns the error.
func (e *ConnectorError) WithKind(kind error) *ConnectorError {
	e.Kind = kind
	return e
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}

// Kind returns the failure class of err, or nil when err matches none.
func Kind(err error) error {
	for _, k := range []error{
		ErrAuthRequired,
		ErrAuthInvalid,
		ErrConnectionUnavailable,
		ErrQueryTimeout,
		ErrQueryExecution,
		ErrInvalidArgument,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
