package notifuse_mjml

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/preslavrachev/gomjml"
)

// TrackingSettings controls open/click tracking rewriting applied to a
// compiled email's HTML before it is handed to the sender (C5).
type TrackingSettings struct {
	EnableTracking bool   `json:"enable_tracking"`
	Endpoint       string `json:"endpoint,omitempty"`
	UTMSource      string `json:"utm_source,omitempty"`
	UTMMedium      string `json:"utm_medium,omitempty"`
	UTMCampaign    string `json:"utm_campaign,omitempty"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

var linkTemplateRe = regexp.MustCompile(`\{\{|\{%`)

// GetTrackingURL rewrites a single link target, appending the configured
// UTM parameters and, when EnableTracking is set, wrapping it behind the
// tracking redirect endpoint. mailto:, tel:, empty and Liquid-templated
// URLs (containing `{{` or `{%`) are returned unchanged since they are
// either non-web targets or not yet resolvable at compile time.
func (t TrackingSettings) GetTrackingURL(target string) string {
	if target == "" {
		return target
	}
	if strings.HasPrefix(target, "mailto:") || strings.HasPrefix(target, "tel:") {
		return target
	}
	if linkTemplateRe.MatchString(target) {
		return target
	}

	withUTM := t.appendUTM(target)
	if !t.EnableTracking || t.Endpoint == "" {
		return withUTM
	}
	return strings.TrimRight(t.Endpoint, "/") + "?url=" + url.QueryEscape(withUTM)
}

func (t TrackingSettings) appendUTM(target string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := parsed.Query()
	if t.UTMSource != "" && q.Get("utm_source") == "" {
		q.Set("utm_source", t.UTMSource)
	}
	if t.UTMMedium != "" && q.Get("utm_medium") == "" {
		q.Set("utm_medium", t.UTMMedium)
	}
	if t.UTMCampaign != "" && q.Get("utm_campaign") == "" {
		q.Set("utm_campaign", t.UTMCampaign)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

var anchorHrefRe = regexp.MustCompile(`(?i)(<a\s[^>]*href=["'])([^"']*)(["'])`)

// TrackLinks rewrites every anchor href in compiled HTML through
// GetTrackingURL. It works on the rendered string rather than a parsed
// DOM tree, matching goquery's tolerance of malformed fragments that can
// occur in hand-authored email bodies.
func TrackLinks(html string, settings TrackingSettings) (string, error) {
	result := anchorHrefRe.ReplaceAllStringFunc(html, func(match string) string {
		groups := anchorHrefRe.FindStringSubmatch(match)
		if len(groups) != 4 {
			return match
		}
		return groups[1] + settings.GetTrackingURL(groups[2]) + groups[3]
	})
	return result, nil
}

// CompileTemplateRequest is the input to CompileTemplate: a visual-editor
// block tree plus the merge-field data and tracking settings to apply.
type CompileTemplateRequest struct {
	WorkspaceID      string                 `json:"workspace_id"`
	MessageID        string                 `json:"message_id"`
	VisualEditorTree EmailBlock             `json:"visual_editor_tree"`
	TemplateData     map[string]interface{} `json:"test_data,omitempty"`
	TrackingSettings TrackingSettings       `json:"tracking_settings,omitempty"`
}

// UnmarshalJSON decodes VisualEditorTree through UnmarshalEmailBlock since
// EmailBlock is an interface and encoding/json cannot pick its concrete
// type on its own.
func (r *CompileTemplateRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		WorkspaceID      string                 `json:"workspace_id"`
		MessageID        string                 `json:"message_id"`
		VisualEditorTree json.RawMessage        `json:"visual_editor_tree"`
		TemplateData     map[string]interface{} `json:"test_data,omitempty"`
		TrackingSettings TrackingSettings        `json:"tracking_settings,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.WorkspaceID = raw.WorkspaceID
	r.MessageID = raw.MessageID
	r.TemplateData = raw.TemplateData
	r.TrackingSettings = raw.TrackingSettings
	if len(raw.VisualEditorTree) > 0 && string(raw.VisualEditorTree) != "null" {
		tree, err := UnmarshalEmailBlock(raw.VisualEditorTree)
		if err != nil {
			return fmt.Errorf("decode visual_editor_tree: %w", err)
		}
		r.VisualEditorTree = tree
	}
	return nil
}

// CompileTemplateResponse is CompileTemplate's output.
type CompileTemplateResponse struct {
	Success bool    `json:"success"`
	MJML    *string `json:"mjml,omitempty"`
	HTML    *string `json:"html,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// CompileTemplate converts a visual-editor block tree to MJML (applying
// Liquid merge-field substitution via ConvertToMJMLStringWithData), runs
// the MJML-to-HTML compiler (the gomjml fork required in go.mod), and
// applies link tracking to the result.
func CompileTemplate(req CompileTemplateRequest) (CompileTemplateResponse, error) {
	if req.VisualEditorTree == nil {
		msg := "visual_editor_tree is required"
		return CompileTemplateResponse{Success: false, Error: &msg}, fmt.Errorf(msg)
	}

	var templateDataJSON string
	if len(req.TemplateData) > 0 {
		b, err := json.Marshal(req.TemplateData)
		if err != nil {
			msg := err.Error()
			return CompileTemplateResponse{Success: false, Error: &msg}, err
		}
		templateDataJSON = string(b)
	}

	mjmlSource, err := ConvertToMJMLStringWithData(req.VisualEditorTree, templateDataJSON)
	if err != nil {
		msg := err.Error()
		return CompileTemplateResponse{Success: false, Error: &msg}, err
	}

	htmlOut, err := gomjml.ToHTML(mjmlSource)
	if err != nil {
		msg := err.Error()
		return CompileTemplateResponse{Success: false, MJML: &mjmlSource, Error: &msg}, err
	}

	settings := req.TrackingSettings
	if settings.WorkspaceID == "" {
		settings.WorkspaceID = req.WorkspaceID
	}
	if settings.MessageID == "" {
		settings.MessageID = req.MessageID
	}
	tracked, err := TrackLinks(htmlOut, settings)
	if err != nil {
		msg := err.Error()
		return CompileTemplateResponse{Success: false, MJML: &mjmlSource, Error: &msg}, err
	}

	return CompileTemplateResponse{Success: true, MJML: &mjmlSource, HTML: &tracked}, nil
}
