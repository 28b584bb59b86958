package service

import (
	"errors"
	"fmt"
)

// Kind 是稳定的错误类别，调用方据此判断如何处理。
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindUnsupportedType      Kind = "unsupported_type"
	KindUnsupportedExtension Kind = "unsupported_extension"
	KindTooLarge             Kind = "too_large"
	KindNotFound             Kind = "not_found"
	KindAssetNotFound        Kind = "asset_not_found"
	KindTemplateNotFound     Kind = "template_not_found"
	KindPersistence          Kind = "persistence_failure"
)

// FieldError 描述单个字段的校验失败。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 是业务层返回给调用方的结构化错误。
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 比较，使 errors.Is(err, ErrNotFound) 对任意消息的同类错误成立。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// 用于 errors.Is 的哨兵值。
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrUnsupportedType      = &Error{Kind: KindUnsupportedType}
	ErrUnsupportedExtension = &Error{Kind: KindUnsupportedExtension}
	ErrTooLarge             = &Error{Kind: KindTooLarge}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrAssetNotFound        = &Error{Kind: KindAssetNotFound}
	ErrTemplateNotFound     = &Error{Kind: KindTemplateNotFound}
	ErrPersistence          = &Error{Kind: KindPersistence}
)

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func validationError(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func notFound(msg string) *Error {
	return newError(KindNotFound, msg)
}

func persistenceFailure(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf 返回错误的类别，非结构化错误视为持久化失败。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}
