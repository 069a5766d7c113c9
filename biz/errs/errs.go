// Package errs 账本与撮合的结构化错误
package errs

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Kind 错误分类，对外稳定
type Kind string

const (
	InvalidAmount       Kind = "InvalidAmount"
	InsufficientBalance Kind = "InsufficientBalance"
	AssetNotFound       Kind = "AssetNotFound"
	PoolNotFound        Kind = "PoolNotFound"
	WalletNotFound      Kind = "WalletNotFound"
	PriceUnavailable    Kind = "PriceUnavailable"
	RatioMismatch       Kind = "RatioMismatch"
	TokenPairMismatch   Kind = "TokenPairMismatch"
	ZeroOutput          Kind = "ZeroOutput"
	PoolExists          Kind = "PoolExists"
	Contention          Kind = "Contention"

	InvalidRequest      Kind = "InvalidRequest"
	OrderNotFound       Kind = "OrderNotFound"
	TransactionNotFound Kind = "TransactionNotFound"
	InvalidState        Kind = "InvalidState"
	KYCRequired         Kind = "KYCRequired"
	Internal            Kind = "Internal"
)

// E 携带分类、描述与底层原因
type E struct {
	Kind    Kind
	Message string

	cause error
}

func New(kind Kind, message string) *E {
	return &E{Kind: kind, Message: strings.TrimSpace(message)}
}

// Wrap 保留底层错误，errors.Is/As 可穿透
func Wrap(kind Kind, message string, cause error) *E {
	return &E{Kind: kind, Message: strings.TrimSpace(message), cause: cause}
}

func (e *E) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		b.WriteString(" cause=")
		b.WriteString(strconv.Quote(e.cause.Error()))
	}
	return b.String()
}

func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 同 Kind 视为相等，便于 errors.Is(err, errs.New(errs.Contention, ""))
func (e *E) Is(target error) bool {
	var t *E
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf 提取错误分类，非 *E 归为 Internal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return Internal
}

// IsKind 判断错误链中是否含指定分类
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable 仅锁竞争可重试
func Retryable(err error) bool {
	return IsKind(err, Contention)
}

// HTTPStatus 分类到 HTTP 状态码
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidAmount, InvalidRequest, RatioMismatch, TokenPairMismatch, ZeroOutput:
		return http.StatusBadRequest
	case KYCRequired:
		return http.StatusForbidden
	case AssetNotFound, PoolNotFound, WalletNotFound, OrderNotFound, TransactionNotFound:
		return http.StatusNotFound
	case PoolExists, InvalidState, Contention:
		return http.StatusConflict
	case InsufficientBalance:
		return http.StatusUnprocessableEntity
	case PriceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Public 对外可见的描述，Internal 不暴露细节
func Public(err error) (Kind, string) {
	kind := KindOf(err)
	if kind == Internal {
		return kind, "internal error"
	}
	var e *E
	errors.As(err, &e)
	return kind, e.Message
}
