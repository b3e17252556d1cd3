// Copyright 2024 AI SA Assistant Project
//
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

package resilience

import (
	"context"
	"errors"
	"net/http"
)

// ErrorCode represents standard error codes used across the system
type ErrorCode string

const (
	// Client errors (4xx)
	ErrorCodeBadRequest ErrorCode = "BAD_REQUEST"
	ErrorCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrorCodeConflict   ErrorCode = "CONFLICT"

	// Server errors (5xx)
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout            ErrorCode = "TIMEOUT"
	ErrorCodeDependencyFailure  ErrorCode = "DEPENDENCY_FAILURE"
)

// ServiceError pairs a display message with a status code. Internal keeps
// the underlying cause for logs and is never rendered.
type ServiceError struct {
	Message    string
	Code       ErrorCode
	StatusCode int
	Internal   error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Internal }

// NewServiceError creates a new ServiceError with the given parameters
func NewServiceError(message string, code ErrorCode, statusCode int, internal error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

func NewBadRequestError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeBadRequest, http.StatusBadRequest, internal)
}

func NewNotFoundError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeNotFound, http.StatusNotFound, internal)
}

func NewConflictError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeConflict, http.StatusConflict, internal)
}

func NewInternalError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeInternalError, http.StatusInternalServerError, internal)
}

func NewServiceUnavailableError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeServiceUnavailable, http.StatusServiceUnavailable, internal)
}

func NewTimeoutError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeTimeout, http.StatusGatewayTimeout, internal)
}

func NewDependencyFailureError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeDependencyFailure, http.StatusBadGateway, internal)
}

// AsServiceError finds a ServiceError in err's chain.
func AsServiceError(err error, target **ServiceError) bool {
	if err == nil {
		return false
	}
	return errors.As(err, target)
}

// DependencyError classifies a failed call to the model endpoint. The
// message is always the caller's; only the status code varies.
func DependencyError(message string, err error) *ServiceError {
	var serviceErr *ServiceError
	switch {
	case errors.Is(err, ErrCircuitBreakerOpen):
		return NewServiceUnavailableError(message, err)
	case AsServiceError(err, &serviceErr) && serviceErr.Code == ErrorCodeTimeout:
		return NewTimeoutError(message, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(message, err)
	default:
		return NewDependencyFailureError(message, err)
	}
}
