// Package apperror коды ошибок сервисов siting и их перенос через gRPC.
//
// Код и поле едут в деталях статуса (errdetails.ErrorInfo), текст статуса
// остаётся человекочитаемым.
package apperror

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain значение ErrorInfo.Domain
const Domain = "siting"

type ErrorCode string

const (
	// вход и конфигурация
	CodeConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	CodeInvalidBoundingBox ErrorCode = "INVALID_BOUNDING_BOX"
	CodeInvalidConstraint  ErrorCode = "INVALID_CONSTRAINT"
	CodeInvalidCoordinate  ErrorCode = "INVALID_COORDINATE"
	CodeInvalidDemand      ErrorCode = "INVALID_DEMAND"
	CodeInvalidFacility    ErrorCode = "INVALID_FACILITY"
	CodeUnknownOption      ErrorCode = "UNKNOWN_OPTION"
	CodeInvalidArgument    ErrorCode = "INVALID_ARGUMENT"
	CodeNilInput           ErrorCode = "NIL_INPUT"
	CodeInvalidPagination  ErrorCode = "INVALID_PAGINATION"

	// исход оптимизации
	CodeNoSuitableCandidates ErrorCode = "NO_SUITABLE_CANDIDATES"
	CodeOptimizationFailed   ErrorCode = "OPTIMIZATION_FAILED"
	CodeTimeout              ErrorCode = "TIMEOUT"
	CodeCancelled            ErrorCode = "CANCELLED"

	// внешние источники
	CodeProviderFailed  ErrorCode = "PROVIDER_FAILED"
	CodeNarrativeFailed ErrorCode = "NARRATIVE_FAILED"
	CodeReportFailed    ErrorCode = "REPORT_FAILED"

	CodeInternal      ErrorCode = "INTERNAL_ERROR"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeRunNotFound   ErrorCode = "RUN_NOT_FOUND"
	CodeRateLimited   ErrorCode = "RATE_LIMITED"
	CodeUnavailable   ErrorCode = "UNAVAILABLE"
	CodeUnimplemented ErrorCode = "UNIMPLEMENTED"
)

// grpcCodes отсутствующий код даёт Internal
var grpcCodes = map[ErrorCode]codes.Code{
	CodeConfiguration:      codes.InvalidArgument,
	CodeInvalidBoundingBox: codes.InvalidArgument,
	CodeInvalidConstraint:  codes.InvalidArgument,
	CodeInvalidCoordinate:  codes.InvalidArgument,
	CodeInvalidDemand:      codes.InvalidArgument,
	CodeInvalidFacility:    codes.InvalidArgument,
	CodeUnknownOption:      codes.InvalidArgument,
	CodeInvalidArgument:    codes.InvalidArgument,
	CodeNilInput:           codes.InvalidArgument,
	CodeInvalidPagination:  codes.InvalidArgument,

	CodeNoSuitableCandidates: codes.FailedPrecondition,
	CodeOptimizationFailed:   codes.Aborted,
	CodeTimeout:              codes.DeadlineExceeded,
	CodeCancelled:            codes.Canceled,

	CodeProviderFailed: codes.Unavailable,
	CodeUnavailable:    codes.Unavailable,
	CodeNotFound:       codes.NotFound,
	CodeRunNotFound:    codes.NotFound,
	CodeRateLimited:    codes.ResourceExhausted,
	CodeUnimplemented:  codes.Unimplemented,
}

// fallbackCodes для статусов без ErrorInfo
var fallbackCodes = map[codes.Code]ErrorCode{
	codes.InvalidArgument:    CodeInvalidArgument,
	codes.FailedPrecondition: CodeNoSuitableCandidates,
	codes.Aborted:            CodeOptimizationFailed,
	codes.DeadlineExceeded:   CodeTimeout,
	codes.Canceled:           CodeCancelled,
	codes.NotFound:           CodeNotFound,
	codes.ResourceExhausted:  CodeRateLimited,
	codes.Unavailable:        CodeUnavailable,
	codes.Unimplemented:      CodeUnimplemented,
}

type Error struct {
	Code    ErrorCode
	Message string
	Field   string // поле запроса, если ошибка про вход
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// GRPCCode gRPC код для e.Code
func (e *Error) GRPCCode() codes.Code {
	if c, ok := grpcCodes[e.Code]; ok {
		return c
	}
	return codes.Internal
}

// GRPCStatus вызывается status.FromError. Details уходят в метаданные
// ErrorInfo строками.
func (e *Error) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Message)

	meta := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		meta[k] = fmt.Sprint(v)
	}
	if e.Field != "" {
		meta["field"] = e.Field
	}
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   Domain,
		Metadata: meta,
	})
	if err != nil {
		return st
	}
	return withInfo
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Details: map[string]any{}}
}

func NewWithField(code ErrorCode, message, field string) *Error {
	e := New(code, message)
	e.Field = field
	return e
}

// Configuration ошибка CONFIGURATION_ERROR по полю входа
func Configuration(field, format string, args ...any) *Error {
	return NewWithField(CodeConfiguration, fmt.Sprintf(format, args...), field)
}

func Wrap(cause error, code ErrorCode, message string) *Error {
	e := New(code, message)
	e.Cause = cause
	return e
}

func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// FromContext превращает отмену и дедлайн в CANCELLED и TIMEOUT,
// остальное возвращает как есть
func FromContext(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, CodeTimeout, "optimization deadline exceeded")
	case errors.Is(err, context.Canceled):
		return Wrap(err, CodeCancelled, "optimization cancelled")
	}
	return err
}

// Is ищет *Error с кодом code по цепочке
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsConfiguration(err error) bool { return Is(err, CodeConfiguration) }

// ToGRPC ошибка для возврата из обработчика. Готовые статусы проходят без
// изменений, неизвестные ошибки становятся Internal.
func ToGRPC(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.GRPCStatus().Err()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}

// FromGRPC восстанавливает *Error на стороне клиента. При наличии ErrorInfo
// нашего домена берутся его код, поле и детали, иначе код по gRPC статусу.
func FromGRPC(err error) *Error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return Wrap(err, CodeInternal, err.Error())
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}
		e := New(ErrorCode(info.GetReason()), st.Message())
		for k, v := range info.GetMetadata() {
			if k == "field" {
				e.Field = v
				continue
			}
			e.Details[k] = v
		}
		return e
	}

	code, ok := fallbackCodes[st.Code()]
	if !ok {
		code = CodeInternal
	}
	return New(code, st.Message())
}
