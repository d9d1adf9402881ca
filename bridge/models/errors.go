package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode is a stable machine readable error identifier.
type ErrorCode string

// ErrorResponse is the coded error every bridge component returns to its callers.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Details string    `json:"details,omitempty"`
	cause   error
}

// Abbreviation `BR` for the error code stands for Bridge Route
var (
	ErrNoRouteAvailable      = &ErrorResponse{Code: ErrorCode("BR-001"), Details: "no route available"}
	ErrFeeQuoteUnavailable   = &ErrorResponse{Code: ErrorCode("BR-002"), Details: "fee quote unavailable"}
	ErrInsufficientAllowance = &ErrorResponse{Code: ErrorCode("BR-003"), Details: "insufficient allowance"}
	ErrUserRejected          = &ErrorResponse{Code: ErrorCode("BR-004"), Details: "user rejected signature"}
	ErrNetworkSwitchFailed   = &ErrorResponse{Code: ErrorCode("BR-005"), Details: "network switch failed"}
	ErrTransactionReverted   = &ErrorResponse{Code: ErrorCode("BR-006"), Details: "transaction reverted"}
	ErrRpc                   = &ErrorResponse{Code: ErrorCode("BR-007"), Details: "rpc error"}
	ErrInvalidIntent         = &ErrorResponse{Code: ErrorCode("BR-008"), Details: "invalid transfer intent"}
	ErrExecutionInFlight     = &ErrorResponse{Code: ErrorCode("BR-009"), Details: "execution already in flight"}
	ErrSlippageExceeded      = &ErrorResponse{Code: ErrorCode("BR-010"), Details: "quoted output outside slippage tolerance"}
)

// Error implements the error interface for ErrorResponse.
func (e *ErrorResponse) Error() string {
	errorJSON, _ := json.Marshal(e)
	return string(errorJSON)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrorResponse) Unwrap() error {
	return e.cause
}

// Is matches any ErrorResponse with the same code.
func (e *ErrorResponse) Is(target error) bool {
	var other *ErrorResponse
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// WithDetails returns a copy of e with formatted details appended.
func (e *ErrorResponse) WithDetails(format string, args ...any) *ErrorResponse {
	return &ErrorResponse{
		Code:    e.Code,
		Details: e.Details + ": " + fmt.Sprintf(format, args...),
		cause:   e.cause,
	}
}

// Wrap returns a copy of e caused by err. The cause's message is appended to the details.
func (e *ErrorResponse) Wrap(err error) *ErrorResponse {
	if err == nil {
		return e
	}
	return &ErrorResponse{
		Code:    e.Code,
		Details: e.Details + ": " + err.Error(),
		cause:   err,
	}
}

// CreateErrorResponseFromError creates an ErrorResponse from a generic error.
func CreateErrorResponseFromError(err error) error {
	if err == nil {
		return nil
	}
	var errResp *ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}
	return &ErrorResponse{
		Code:    "0",
		Details: err.Error(),
		cause:   err,
	}
}

// CodeOf returns the code of err, or "0" for uncoded errors.
func CodeOf(err error) ErrorCode {
	var errResp *ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.Code
	}
	return "0"
}
