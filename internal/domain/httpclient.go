package domain

import "net/http"

//go:generate mockgen -destination=./mocks/mock_http_client.go -package=mocks github.com/isg-automation/scheduler/internal/domain HTTPClient

// HTTPClient is the seam every outbound integration (email provider,
// geocoder) is built against instead of *http.Client directly, exactly as
// the teacher's SendGridService does, so tests can inject a fake
// transport without starting a real server.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
