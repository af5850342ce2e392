package errors

import "fmt"

// ErrorCode 에러 코드 정의
type ErrorCode string

const (
	// Validation Errors (결제 생성 검증)
	ErrCodeNoReservationLink      ErrorCode = "NO_RESERVATION_LINK"
	ErrCodeInvalidPaymentPrice    ErrorCode = "INVALID_PAYMENT_PRICE"
	ErrCodeInvalidPaymentMethod   ErrorCode = "INVALID_PAYMENT_METHOD"
	ErrCodeDuplicateReservationID ErrorCode = "DUPLICATE_RESERVATION_ID"

	// Business Errors
	ErrCodeInvalidTransition            ErrorCode = "INVALID_TRANSITION"
	ErrCodePaymentNotFound              ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeMultiplePaymentFound         ErrorCode = "MULTIPLE_PAYMENT_FOUND"
	ErrCodeInvalidReservationForPayment ErrorCode = "INVALID_RESERVATION_FOR_PAYMENT"
	ErrCodePaymentKeyNotFound           ErrorCode = "PAYMENT_KEY_NOT_FOUND"
	ErrCodePaymentKeyGenerationFailed   ErrorCode = "PAYMENT_KEY_GENERATION_FAILED"
	ErrCodePaymentConfirmFailed         ErrorCode = "PAYMENT_CONFIRM_FAILED"

	// Technical Errors
	ErrCodeGatewayError        ErrorCode = "GATEWAY_ERROR"
	ErrCodeEventPublishFailed  ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeDatabaseError       ErrorCode = "DATABASE_ERROR"
	ErrCodeNetworkError        ErrorCode = "NETWORK_ERROR"
	ErrCodeSerializationError  ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeInternalServerError ErrorCode = "INTERNAL_SERVER_ERROR"
)

// DomainError 도메인 에러 구조체
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// New 새로운 도메인 에러 생성
func New(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Wrap 기존 에러를 래핑한 도메인 에러 생성
func Wrap(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf 에러에서 에러 코드 추출 (도메인 에러가 아니면 UNKNOWN)
func CodeOf(err error) ErrorCode {
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr.Code
	}
	return "UNKNOWN"
}

// Is 에러가 특정 코드의 도메인 에러인지 판단
func Is(err error, code ErrorCode) bool {
	domainErr, ok := err.(*DomainError)
	return ok && domainErr.Code == code
}

// IsRetryable 재시도 가능한 에러인지 판단
func IsRetryable(err error) bool {
	if domainErr, ok := err.(*DomainError); ok {
		switch domainErr.Code {
		case ErrCodeDatabaseError, ErrCodeNetworkError, ErrCodeGatewayError, ErrCodeEventPublishFailed:
			return true
		}
	}
	return false
}

// IsBusinessError 비즈니스 에러인지 판단 (재시도 불필요)
func IsBusinessError(err error) bool {
	if domainErr, ok := err.(*DomainError); ok {
		switch domainErr.Code {
		case ErrCodeNoReservationLink, ErrCodeInvalidPaymentPrice, ErrCodeInvalidPaymentMethod,
			ErrCodeDuplicateReservationID, ErrCodeInvalidTransition, ErrCodePaymentNotFound,
			ErrCodeMultiplePaymentFound, ErrCodeInvalidReservationForPayment, ErrCodePaymentKeyNotFound:
			return true
		}
	}
	return false
}
