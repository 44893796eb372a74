package usecase

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"storycast/domain/model"
)

// User-facing messages are localized; the raw error is kept separately in the
// assignment error history for operators.
const (
	MsgAccountNotFound  = "الحساب غير موجود"
	MsgAccountInactive  = "الحساب غير نشط، يرجى إعادة تفعيله"
	MsgNoPermission     = "لا تملك صلاحية النشر على هذه المنصة"
	MsgInvalidMedia     = "الوسائط غير صالحة أو غير مدعومة على هذه المنصة"
	MsgTokenExpired     = "انتهت صلاحية رمز الوصول، يرجى إعادة ربط الحساب"
	MsgNetworkIssue     = "تعذر الوصول إلى المنصة، ستتم إعادة المحاولة تلقائيًا"
	MsgRateLimited      = "تم تجاوز حد النشر المسموح، ستتم إعادة المحاولة بعد قليل"
	MsgPlatformDown     = "عطل مؤقت لدى المنصة، ستتم إعادة المحاولة تلقائيًا"
	MsgUnknownError     = "خطأ غير متوقع، ستتم إعادة المحاولة"
	MsgMediaMissing     = "ملف الوسائط غير موجود في المخزن، يرجى إعادة إنشاء الوسائط"
	MsgMediaNotReady    = "الوسائط قيد التجهيز، ستتم إعادة المحاولة"
	MsgDailyQuotaFull   = "تم بلوغ الحد اليومي للنشر على هذا الحساب"
	MsgMonthlyQuotaFull = "تم بلوغ الحد الشهري للنشر على هذا الحساب"
	MsgRetriesExhausted = "تعذر النشر بعد عدة محاولات، يرجى المحاولة لاحقًا"
)

const (
	backoffBase = time.Second
	backoffCap  = 60 * time.Second
)

// Classification is the classifier's verdict for one raw failure.
type Classification struct {
	Retryable   bool
	UserMessage string
	Backoff     time.Duration
}

// ErrorClassifier maps raw publish failures into the retry taxonomy. The rate
// limiter is consulted on 429s so the wait scales with how far the per-minute
// window was exceeded.
type ErrorClassifier struct {
	limiter *RateLimiter
}

func NewErrorClassifier(limiter *RateLimiter) *ErrorClassifier {
	return &ErrorClassifier{limiter: limiter}
}

// Backoff returns min(1s * 2^retryCount, 60s).
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	d := backoffBase << uint(retryCount)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}

// Classify applies the first-match rules: permission, malformed media and
// invalid tokens are fatal; network, timeouts, 5xx and 429 are retryable.
// Unknown failures default to retryable so content is never silently dropped.
func (c *ErrorClassifier) Classify(err error, platform model.Platform, accountID string, retryCount int) Classification {
	var pe *model.PlatformError
	if errors.As(err, &pe) {
		switch {
		case pe.StatusCode == 403 || isPermissionCode(pe.Code) || containsAny(pe.Message, "permission", "not authorized", "forbidden"):
			return Classification{Retryable: false, UserMessage: MsgNoPermission}
		case isMediaCode(pe.Code) || (pe.StatusCode == 400 && containsAny(pe.Message, "media", "unsupported format", "invalid video", "invalid image")):
			return Classification{Retryable: false, UserMessage: MsgInvalidMedia}
		case pe.StatusCode == 401 || isTokenCode(pe.Code) || containsAny(pe.Message, "token expired", "invalid token", "session has expired"):
			return Classification{Retryable: false, UserMessage: MsgTokenExpired}
		case pe.StatusCode == 429:
			return Classification{Retryable: true, UserMessage: MsgRateLimited, Backoff: c.rateLimitDelay(pe, platform, accountID, retryCount)}
		case pe.StatusCode >= 500:
			return Classification{Retryable: true, UserMessage: MsgPlatformDown, Backoff: Backoff(retryCount)}
		}
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) ||
		containsAny(errString(err), "connection refused", "no such host", "network is unreachable", "i/o timeout", "timeout") {
		return Classification{Retryable: true, UserMessage: MsgNetworkIssue, Backoff: Backoff(retryCount)}
	}

	// Last-chance message heuristics for errors that lost their structure.
	msg := errString(err)
	switch {
	case containsAny(msg, "permission", "not authorized"):
		return Classification{Retryable: false, UserMessage: MsgNoPermission}
	case containsAny(msg, "token expired", "invalid token"):
		return Classification{Retryable: false, UserMessage: MsgTokenExpired}
	case containsAny(msg, "invalid media", "unsupported media"):
		return Classification{Retryable: false, UserMessage: MsgInvalidMedia}
	}

	return Classification{Retryable: true, UserMessage: MsgUnknownError, Backoff: Backoff(retryCount)}
}

// rateLimitDelay honours the provider's retry-after when present; otherwise
// the exponential backoff grows by a second per request over the per-minute
// window. Capped at 60 seconds either way.
func (c *ErrorClassifier) rateLimitDelay(pe *model.PlatformError, platform model.Platform, accountID string, retryCount int) time.Duration {
	if pe != nil && pe.RetryAfter > 0 {
		if pe.RetryAfter > backoffCap {
			return backoffCap
		}
		return pe.RetryAfter
	}
	d := Backoff(retryCount)
	if c.limiter != nil {
		d += time.Duration(c.limiter.Overage(platform, accountID)) * time.Second
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func isPermissionCode(code string) bool {
	switch strings.ToLower(code) {
	case "permission_denied", "insufficient_scope", "oauth_insufficient_scope", "spam_risk":
		return true
	}
	return false
}

func isTokenCode(code string) bool {
	switch strings.ToLower(code) {
	case "invalid_token", "token_expired", "access_token_invalid", "oauth_exception", "190":
		return true
	}
	return false
}

func isMediaCode(code string) bool {
	switch strings.ToLower(code) {
	case "invalid_media", "unsupported_media_type", "media_too_large", "video_format_unsupported", "picture_size_limit_exceeded":
		return true
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
