// Package email provides email sending functionality
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"
)

// Config holds email configuration
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	FromName    string
	UseTLS      bool
	FrontendURL string
}

// Service handles email sending
type Service struct {
	config    *Config
	templates map[string]*template.Template
}

// NewService creates a new email service
func NewService(config *Config) *Service {
	s := &Service{
		config:    config,
		templates: make(map[string]*template.Template),
	}
	s.loadTemplates()
	return s
}

// Email represents an email message
type Email struct {
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	Body     string
	HTMLBody string
}

// InvitationEmailData holds data for team invitation emails
type InvitationEmailData struct {
	TeamName  string
	InvitedBy string
	InviteURL string
}

// TaskAssignedData holds data for task assignment emails
type TaskAssignedData struct {
	AssigneeName string
	AssignerName string
	TaskTitle    string
	Priority     string
	DueDate      string
	Description  string
	TaskURL      string
}

// DueDateReminderData holds data for due-date reminder emails
type DueDateReminderData struct {
	UserName  string
	TaskTitle string
	DueDate   string
	TaskURL   string
}

// loadTemplates loads all email templates
func (s *Service) loadTemplates() {
	s.templates["invitation"] = template.Must(template.New("invitation").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #10b981; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: #10b981; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h2>You're Invited to TaskMaster</h2>
    </div>
    <div class="content">
        <p>Hello,</p>
        <p><strong>{{.InvitedBy}}</strong> invited you to join <strong>{{.TeamName}}</strong>.</p>

        <a href="{{.InviteURL}}" class="btn">Accept Invitation</a>

        <p style="margin-top: 16px; font-size: 14px; color: #6b7280;">
            This invitation expires in 7 days. If you were not expecting this email, you can ignore it.
        </p>
    </div>
    <div class="footer">
        TaskMaster • Team Collaboration Platform
    </div>
</div>
</body>
</html>
`))

	s.templates["task_assigned"] = template.Must(template.New("task_assigned").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; }
        .content { background: #f9fafb; padding: 30px; border-radius: 0 0 10px 10px; }
        .task-card { background: white; border-radius: 8px; padding: 20px; margin: 20px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .btn { display: inline-block; background: #667eea; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin-top: 15px; }
        .priority-high { color: #ef4444; }
        .priority-urgent { color: #ef4444; }
        .priority-medium { color: #f59e0b; }
        .priority-low { color: #10b981; }
        .footer { text-align: center; color: #6b7280; font-size: 12px; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>New Task Assigned</h1>
        </div>
        <div class="content">
            <p>Hi {{.AssigneeName}},</p>
            <p>You have been assigned a new task by <strong>{{.AssignerName}}</strong>.</p>

            <div class="task-card">
                <h2>{{.TaskTitle}}</h2>
                <p><strong>Priority:</strong> <span class="priority-{{.Priority}}">{{.Priority}}</span></p>
                {{if .DueDate}}<p><strong>Due Date:</strong> {{.DueDate}}</p>{{end}}
                {{if .Description}}<p><strong>Description:</strong><br/>{{.Description}}</p>{{end}}
            </div>

            <a href="{{.TaskURL}}" class="btn">View Task</a>
        </div>
        <div class="footer">
            <p>This email was sent from TaskMaster</p>
        </div>
    </div>
</body>
</html>
`))

	s.templates["due_reminder"] = template.Must(template.New("due_reminder").Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #f59e0b; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: #f59e0b; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h2>Task Due Soon</h2>
    </div>
    <div class="content">
        <p>Hi {{.UserName}},</p>
        <p>Your task <strong>{{.TaskTitle}}</strong> is due on <strong>{{.DueDate}}</strong>.</p>
        <a href="{{.TaskURL}}" class="btn">View Task</a>
    </div>
    <div class="footer">
        TaskMaster • Team Collaboration Platform
    </div>
</div>
</body>
</html>
`))
}

// SendTeamInvitation sends an invitation email carrying the join link
func (s *Service) SendTeamInvitation(to, teamName, invitedBy, token string) error {
	if invitedBy == "" {
		invitedBy = "Someone"
	}

	inviteURL := fmt.Sprintf("%s/invite?token=%s", s.config.FrontendURL, token)

	data := InvitationEmailData{
		TeamName:  teamName,
		InvitedBy: invitedBy,
		InviteURL: inviteURL,
	}

	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[TaskMaster] Invitation to join %s", teamName),
		"invitation",
		data,
	)
}

// SendTaskAssigned sends a task assignment email
func (s *Service) SendTaskAssigned(to string, data TaskAssignedData) error {
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[TaskMaster] New task: %s", data.TaskTitle),
		"task_assigned",
		data,
	)
}

// SendDueDateReminder sends a due-date reminder email
func (s *Service) SendDueDateReminder(to string, data DueDateReminderData) error {
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[TaskMaster] Task due soon: %s", data.TaskTitle),
		"due_reminder",
		data,
	)
}

// Send sends an email
func (s *Service) Send(email *Email) error {
	if s.config.Host == "" {
		log.Println("Email not configured, skipping send")
		return nil
	}

	var msg bytes.Buffer

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	if len(email.CC) > 0 {
		msg.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(email.CC, ", ")))
	}
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody != "" {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.HTMLBody)
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(email.Body)
	}

	recipients := append(email.To, email.CC...)
	recipients = append(recipients, email.BCC...)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if s.config.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: s.config.Host,
		}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("TLS dial error: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.config.Host)
		if err != nil {
			return fmt.Errorf("SMTP client error: %w", err)
		}
		defer client.Close()

		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("auth error: %w", err)
		}

		if err = client.Mail(s.config.From); err != nil {
			return fmt.Errorf("mail error: %w", err)
		}

		for _, rcpt := range recipients {
			if err = client.Rcpt(rcpt); err != nil {
				return fmt.Errorf("rcpt error: %w", err)
			}
		}

		w, err := client.Data()
		if err != nil {
			return fmt.Errorf("data error: %w", err)
		}

		if _, err = w.Write(msg.Bytes()); err != nil {
			return fmt.Errorf("write error: %w", err)
		}

		if err = w.Close(); err != nil {
			return fmt.Errorf("close error: %w", err)
		}

		return client.Quit()
	}

	return smtp.SendMail(addr, auth, s.config.From, recipients, msg.Bytes())
}

// SendWithTemplate sends an email using a template
func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("template not found: %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	return s.Send(&Email{
		To:       to,
		Subject:  subject,
		HTMLBody: body.String(),
	})
}
