package emailerror

// SES recipient error patterns: bounce/complaint-adjacent rejections the
// AWS SES API reports synchronously at send time.
var sesRecipientPatterns = []string{
	"invalid address",
	"address blacklisted",
	"message rejected",
	"recipient address rejected",
	"email address is not verified", // sandbox-mode rejection of an unverified recipient
}

// SES provider error patterns: account/API-level throttling and outages.
var sesProviderPatterns = []string{
	"throttling",
	"too many requests",
	"rate exceeded",
	"service unavailable",
	"internal failure",
	"sending quota exceeded",
	"daily message quota exceeded",
}

func (c *Classifier) classifySESError(err error, errStr string, httpStatus int) *ClassifiedError {
	result := &ClassifiedError{Original: err, Provider: "ses", HTTPStatus: httpStatus, Retryable: true}

	if containsAny(errStr, sesRecipientPatterns) {
		result.Type = ErrorTypeRecipient
		result.Retryable = false
		return result
	}

	if containsAny(errStr, sesProviderPatterns) {
		result.Type = ErrorTypeProvider
		result.Retryable = true
		return result
	}

	if httpStatus > 0 {
		result.Type = classifyByHTTPStatus(httpStatus)
		result.Retryable = httpStatus >= 500 || httpStatus == 429
		return result
	}

	result.Type = ErrorTypeUnknown
	result.Retryable = true
	return result
}
