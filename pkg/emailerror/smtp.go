package emailerror

// SMTP recipient error patterns, matched against the textual reply a
// direct SMTP relay returns — no HTTP status applies, so these patterns
// carry more of the classification weight than for the HTTP-backed
// providers.
var smtpRecipientPatterns = []string{
	"user unknown",
	"no such user",
	"mailbox unavailable",
	"mailbox not found",
	"recipient address rejected",
	"550",
	"551",
	"553",
	"554",
}

// SMTP provider error patterns: transient relay/connection failures.
var smtpProviderPatterns = []string{
	"connection refused",
	"connection reset",
	"i/o timeout",
	"try again later",
	"greylisted",
	"451",
	"452",
}

func (c *Classifier) classifySMTPError(err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: "smtp", HTTPStatus: httpStatus, Retryable: true}

	if containsAny(errStr, smtpRecipientPatterns) {
		result.Type = ErrorTypeRecipient
		result.Retryable = false
		return result
	}

	if containsAny(errStr, smtpProviderPatterns) {
		result.Type = ErrorTypeProvider
		result.Retryable = true
		return result
	}

	result.Type = ErrorTypeUnknown
	result.Retryable = true
	return result
}
