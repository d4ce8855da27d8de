package core

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"
	"time"
)

//go:embed all:templates/email
var emailTemplatesFS embed.FS

var (
	templates    tmplCache
	tmplInit     sync.Once
	tmplSettings = struct {
		appName         string
		frontendBaseURL string
		strict          bool
	}{appName: "CSI Portal"}
)

const (
	TemplateSurveyInvitation = "survey_invitation"
	TemplateSurveyReminder   = "survey_reminder"
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// Send renders msg and delivers it synchronously.
		Send(ctx context.Context, msg *EmailMessage) error
	}

	// EmailBatch is a set of messages sent for the same reason (a survey blast, a reminder...).
	EmailBatch struct {
		Kind        string
		SurveyID    string
		OperationID string
		Messages    []*EmailMessage
	}

	EmailBatchResult struct {
		Sent   int
		Failed int
	}

	// BatchEmailSender sends a batch, recording the outcome of every message.
	BatchEmailSender interface {
		SendBatch(ctx context.Context, batch EmailBatch) (EmailBatchResult, error)
	}

	EmailLog struct {
		ID             string    `db:"EmailLogId" json:"id"`
		SurveyID       *string   `db:"SurveyId" json:"survey_id"`
		OperationID    *string   `db:"OperationId" json:"operation_id"`
		RecipientEmail string    `db:"RecipientEmail" json:"recipient_email"`
		RecipientName  string    `db:"RecipientName" json:"recipient_name"`
		Subject        string    `db:"Subject" json:"subject"`
		EmailType      string    `db:"EmailType" json:"email_type"`
		Status         string    `db:"Status" json:"status"`
		ErrorMessage   string    `db:"ErrorMessage" json:"error_message"`
		SentAt         time.Time `db:"SentAt" json:"sent_at"`
	}

	EmailLogRepository interface {
		Create(ctx context.Context, log EmailLog) error
		ListBySurvey(ctx context.Context, surveyID string) ([]EmailLog, error)
	}
)

// Email log statuses
const (
	EmailStatusSent   = "Sent"
	EmailStatusFailed = "Failed"
)

// ConfigureEmailTemplates sets the values shared by every template and parses them eagerly.
func ConfigureEmailTemplates(conf *Config, logger Logger) {
	tmplSettings.appName = conf.AppName
	tmplSettings.frontendBaseURL = conf.FrontendBaseURL
	tmplSettings.strict = conf.Debug || conf.TestMode
	tmplInit.Do(func() {
		if err := parseTemplates(); err != nil {
			logger.Error(fmt.Sprintf("parsing email templates: %v", err), err)
		}
	})
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		AppName:         tmplSettings.appName,
		FrontendBaseURL: tmplSettings.frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "base", m.getContextData()); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML() error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, "base", m.getContextData()); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

func (m *EmailMessage) Render() error {
	if m.TemplateName != "" {
		var err error
		tmplInit.Do(func() { err = parseTemplates() }) // only execute once during first request
		if err != nil {
			return err
		}
		if _, ok := templates[m.TemplateName]; !ok {
			return fmt.Errorf("unknown email template %q", m.TemplateName)
		}
	}
	if err := m.renderText(); err != nil {
		return err
	}
	return m.renderHTML()
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

func parseTemplates() error {
	templates = make(tmplCache)

	root := "templates/email"
	entries, err := fs.ReadDir(emailTemplatesFS, root)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fname := e.Name()
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			templates[name] = make(tmplCacheEntry)
			entry = templates[name]
		}
		base := path.Join(root, "_base"+ext)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(emailTemplatesFS, base, path.Join(root, fname))
			if err != nil {
				return err
			}
			if tmplSettings.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(emailTemplatesFS, base, path.Join(root, fname))
			if err != nil {
				return err
			}
			if tmplSettings.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
	return nil
}
