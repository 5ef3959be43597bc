package sender

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Notifuse/liquidgo"

	"github.com/isg-automation/scheduler/internal/domain"
)

// placeholderPattern matches {{ name }}, tolerant of surrounding
// whitespace inside the braces, per spec.md §4.5 step 4.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// mergeFields builds the flat placeholder -> value map for one send,
// covering every token spec.md §4.5 step 4 names.
func mergeFields(account *domain.Account, qualificationValue string, starRatingBaseURL string, scheduledEmailID string) map[string]string {
	now := time.Now()
	fields := map[string]string{
		"first_name":      account.FirstName,
		"last_name":       account.LastName,
		"full_name":       account.FullName(),
		"name":            account.FullName(),
		"company_name":    account.CompanyName,
		"email":           account.Email,
		"phone":           account.Phone,
		"address":         account.Address,
		"city":            account.City,
		"state":           account.State,
		"zip":             account.PostalCode,
		"postal_code":     account.PostalCode,
		"recipient_name":  account.FullName(),
		"recipient_email": account.Email,
		"today":           now.Format("2006-01-02"),
		"current_year":    strconv.Itoa(now.Year()),
		"trigger_date":    qualificationValue,
	}
	for i := 1; i <= 5; i++ {
		fields[fmt.Sprintf("rating_url_%d", i)] = starRatingURL(starRatingBaseURL, scheduledEmailID, account.ID, i)
	}
	return fields
}

func starRatingURL(baseURL, scheduledEmailID, accountID string, rating int) string {
	return fmt.Sprintf("%s?id=%s&rating=%d&account=%s", baseURL, scheduledEmailID, rating, accountID)
}

// applyMergeFields replaces every recognized placeholder in text,
// case-insensitively, leaving unrecognized tokens untouched.
func applyMergeFields(text string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.ToLower(strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1]))
		if v, ok := fields[name]; ok {
			return v
		}
		return match
	})
}

// applyLiquid layers optional {% if %}/{% for %} templating underneath
// the flat placeholder substitution above, for template bodies authored
// with Liquid control flow rather than bare merge tokens.
func applyLiquid(html string, account *domain.Account) (string, error) {
	if !strings.Contains(html, "{%") {
		return html, nil
	}
	engine := liquidgo.NewEngine()
	data := map[string]interface{}{
		"account": map[string]interface{}{
			"first_name": account.FirstName,
			"last_name":  account.LastName,
			"full_name":  account.FullName(),
			"email":      account.Email,
		},
	}
	rendered, err := engine.ParseAndRenderString(html, data)
	if err != nil {
		return html, fmt.Errorf("liquid rendering merge template: %w", err)
	}
	return rendered, nil
}
