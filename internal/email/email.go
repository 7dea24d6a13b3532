// Package email sends account emails through the Resend API.
package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// ResendSender delivers verification and password reset emails. Links embed
// the plaintext token; only hashes or expiring copies live server-side.
type ResendSender struct {
	client *resend.Client
	from   string
	appURL string
}

func NewResendSender(apiKey, from, appURL string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		appURL: appURL,
	}
}

func (s *ResendSender) SendVerification(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.appURL, token)
	html := accountEmail(name,
		"Verify your email",
		"Welcome to FinWise! Confirm your email address to activate your account.",
		"Verify Email", link,
		"This link expires in 24 hours.")
	return s.send(ctx, to, "Verify your email — FinWise", html)
}

func (s *ResendSender) SendPasswordReset(ctx context.Context, to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.appURL, token)
	html := accountEmail(name,
		"Password reset request",
		"We received a request to reset your password. Click the button below to choose a new one.",
		"Reset Password", link,
		"This link expires in 1 hour. If you didn't request a reset, you can safely ignore this email.")
	return s.send(ctx, to, "Reset your password — FinWise", html)
}

func (s *ResendSender) send(ctx context.Context, to, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("FinWise <%s>", s.from),
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send %q email: %w", subject, err)
	}
	return nil
}

func accountEmail(name, heading, intro, action, link, note string) string {
	greeting := "Hi,"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:0;background-color:#f4f6f8;font-family:Arial,Helvetica,sans-serif;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="padding:40px 0;">
    <tr><td align="center">
      <table width="480" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;padding:40px;">
        <tr><td>
          <h1 style="color:#0f172a;font-size:22px;margin:0 0 8px 0;">FinWise</h1>
          <h2 style="color:#0f172a;font-size:17px;margin:0 0 16px 0;">%s</h2>
          <p style="color:#475569;font-size:15px;line-height:1.6;margin:0 0 8px 0;">%s</p>
          <p style="color:#475569;font-size:15px;line-height:1.6;margin:0 0 24px 0;">%s</p>
          <table cellpadding="0" cellspacing="0" style="margin:0 0 24px 0;">
            <tr><td style="background-color:#2563eb;border-radius:6px;padding:12px 32px;">
              <a href="%s" style="color:#ffffff;text-decoration:none;font-size:15px;font-weight:600;">%s</a>
            </td></tr>
          </table>
          <p style="color:#64748b;font-size:13px;line-height:1.6;margin:0 0 16px 0;">%s</p>
          <p style="color:#94a3b8;font-size:13px;line-height:1.6;margin:0;word-break:break-all;">
            If the button doesn't work, copy and paste this link:<br>
            <a href="%s" style="color:#2563eb;">%s</a>
          </p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`, heading, greeting, intro, link, action, note, link, link)
}
