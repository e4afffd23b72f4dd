package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind is the closed set of pipeline failure classes.
type FailureKind string

const (
	KindWebsiteUnreachable FailureKind = "website_unreachable"
	KindInsufficientData   FailureKind = "insufficient_data"
	KindAnalysisTimeout    FailureKind = "analysis_timeout"
	KindSearchProvider     FailureKind = "search_provider_error"
	KindScraping           FailureKind = "scraping_error"
	KindInvalidInput       FailureKind = "invalid_input"
	KindCancelled          FailureKind = "cancelled"
	KindInternal           FailureKind = "internal_error"
)

// Failure is a classified pipeline error. Transient failures may be
// retried; the rest either degrade the job or fail it outright.
type Failure struct {
	Kind      FailureKind
	Message   string
	Transient bool
	cause     error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.cause }

// NewFailure builds a non-transient Failure of the given kind wrapping cause.
func NewFailure(kind FailureKind, msg string, cause error) *Failure {
	return &Failure{Kind: kind, Message: msg, cause: cause}
}

// WebsiteUnreachable means no page of the target site could be fetched.
func WebsiteUnreachable(site string, cause error) *Failure {
	return &Failure{Kind: KindWebsiteUnreachable, Message: site, cause: cause}
}

// InsufficientData means the corpus is too small to extract keywords from.
func InsufficientData(msg string) *Failure {
	return &Failure{Kind: KindInsufficientData, Message: msg}
}

// AnalysisTimeout means the overall job budget was exhausted.
func AnalysisTimeout(msg string) *Failure {
	return &Failure{Kind: KindAnalysisTimeout, Message: msg}
}

// SearchProviderError wraps a failed search provider call.
func SearchProviderError(cause error) *Failure {
	return &Failure{Kind: KindSearchProvider, Message: "search provider call failed", Transient: true, cause: cause}
}

// ScrapingError wraps a failed page fetch or parse.
func ScrapingError(url string, cause error) *Failure {
	return &Failure{Kind: KindScraping, Message: url, Transient: true, cause: cause}
}

// InvalidInput means the questionnaire failed validation. Never retried.
func InvalidInput(msg string) *Failure {
	return &Failure{Kind: KindInvalidInput, Message: msg}
}

// Cancelled marks a job stopped by caller request at a stage boundary.
func Cancelled() *Failure {
	return &Failure{Kind: KindCancelled, Message: "cancelled by caller"}
}

// KindOf extracts the failure kind from err, or KindInternal.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind FailureKind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err is worth retrying: classified transient
// failures and network timeouts. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Sentinel errors surfaced by stores and the API layer.
var (
	ErrNotReady      = errors.New("job results not ready")
	ErrJobNotFound   = errors.New("job not found")
	ErrBatchNotFound = errors.New("import batch not found")
)
