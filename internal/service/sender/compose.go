package sender

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/isg-automation/scheduler/internal/domain"
)

const bodyContainer = `<div class="automation-email">
%s
%s
<hr>
<div class="automation-email-footer">%s</div>
</div>`

// composeBody wraps a compiled, merge-field-substituted body in the
// sending identity's signature and agency info line, then appends the
// unsubscribe link, following spec.md §4.5 step 5.
func composeBody(bodyHTML string, settings *domain.UserSettings, unsubscribeLink string) string {
	signature := ""
	var agencyParts []string
	if settings != nil {
		signature = settings.SignatureHTML
		for _, part := range []string{settings.AgencyName, settings.AgencyAddress, settings.AgencyPhone, settings.AgencyWebsite} {
			if strings.TrimSpace(part) != "" {
				agencyParts = append(agencyParts, part)
			}
		}
	}
	footer := strings.Join(agencyParts, " | ")
	footer += fmt.Sprintf(` &middot; <a href="%s">Unsubscribe</a>`, unsubscribeLink)

	return fmt.Sprintf(bodyContainer, bodyHTML, signature, footer)
}

// unsubscribeLink builds the per-send unsubscribe URL, extending
// domain.GenerateUnsubscribeURL with the scheduled_email_id the
// unsubscribe handler records against, per spec.md §4.5 step 5.
func unsubscribeLink(baseURL, scheduledEmailID, email string) string {
	link := domain.GenerateUnsubscribeURL(baseURL, email)
	sep := "&"
	if !strings.Contains(link, "?") {
		sep = "?"
	}
	return link + sep + "id=" + url.QueryEscape(scheduledEmailID)
}

// fromDomain extracts the domain portion of a from-address, falling back
// to "localhost" when the address carries none (defensive against a
// malformed template FromEmail reaching the Message-ID builder).
func fromDomain(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 && at+1 < len(email) {
		return email[at+1:]
	}
	return "localhost"
}
