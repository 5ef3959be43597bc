package notifuse_mjml

import (
	"strings"
	"testing"
)

func TestTrackingSettingsGetTrackingURL(t *testing.T) {
	settings := TrackingSettings{
		EnableTracking: true,
		Endpoint:       "https://track.example.com/redirect",
		UTMSource:      "email",
		UTMMedium:      "newsletter",
	}

	got := settings.GetTrackingURL("https://example.com")
	if !strings.HasPrefix(got, "https://track.example.com/redirect?url=") {
		t.Fatalf("expected tracked URL, got %q", got)
	}
	if !strings.Contains(got, "utm_source") {
		t.Fatalf("expected encoded target to carry utm_source, got %q", got)
	}
}

func TestTrackingSettingsSkipsNonWebTargets(t *testing.T) {
	settings := TrackingSettings{EnableTracking: true, Endpoint: "https://track.example.com", UTMSource: "email"}

	cases := []string{
		"mailto:test@example.com",
		"tel:+15551234567",
		"https://example.com/{{ account.id }}",
		"",
	}
	for _, c := range cases {
		if got := settings.GetTrackingURL(c); got != c {
			t.Errorf("expected %q unchanged, got %q", c, got)
		}
	}
}

func TestTrackingSettingsDisabledStillAppliesUTM(t *testing.T) {
	settings := TrackingSettings{EnableTracking: false, UTMSource: "email", UTMCampaign: "reminder"}
	got := settings.GetTrackingURL("https://example.com")
	if strings.Contains(got, "track.example.com") {
		t.Fatalf("tracking disabled should not wrap in redirect endpoint, got %q", got)
	}
	if !strings.Contains(got, "utm_source=email") || !strings.Contains(got, "utm_campaign=reminder") {
		t.Fatalf("expected UTM params applied directly, got %q", got)
	}
}

func TestTrackLinksRewritesAnchors(t *testing.T) {
	html := `<p>Hi</p><a href="https://example.com/offer">Shop now</a><a href="mailto:a@b.com">Email us</a>`
	settings := TrackingSettings{EnableTracking: true, Endpoint: "https://track.example.com", UTMSource: "email"}

	out, err := TrackLinks(html, settings)
	if err != nil {
		t.Fatalf("TrackLinks returned error: %v", err)
	}
	if !strings.Contains(out, "track.example.com") {
		t.Errorf("expected web link to be tracked, got %s", out)
	}
	if !strings.Contains(out, `href="mailto:a@b.com"`) {
		t.Errorf("expected mailto link untouched, got %s", out)
	}
}

func TestCompileTemplateRequiresTree(t *testing.T) {
	_, err := CompileTemplate(CompileTemplateRequest{})
	if err == nil {
		t.Fatal("expected error for missing visual_editor_tree")
	}
}

func TestCompileTemplateRequestUnmarshalJSON(t *testing.T) {
	raw := []byte(`{
		"workspace_id": "ws1",
		"message_id": "msg1",
		"visual_editor_tree": {"id": "root", "type": "mjml", "children": []},
		"test_data": {"first_name": "Jordan"},
		"tracking_settings": {"enable_tracking": true, "utm_source": "email"}
	}`)

	var req CompileTemplateRequest
	if err := req.UnmarshalJSON(raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if req.WorkspaceID != "ws1" || req.MessageID != "msg1" {
		t.Fatalf("unexpected ids: %+v", req)
	}
	if req.VisualEditorTree == nil || req.VisualEditorTree.GetType() != MJMLComponentMjml {
		t.Fatalf("expected decoded mjml root, got %+v", req.VisualEditorTree)
	}
	if req.TemplateData["first_name"] != "Jordan" {
		t.Fatalf("expected test_data to decode, got %+v", req.TemplateData)
	}
	if !req.TrackingSettings.EnableTracking {
		t.Fatal("expected tracking_settings to decode")
	}
}
