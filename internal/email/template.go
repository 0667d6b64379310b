package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Branding is the static part of every outbound message.
type Branding struct {
	Name         string
	SupportEmail string
}

type OTPMessage struct {
	Code         string
	Purpose      string
	ValidMinutes int
}

type otpTemplateData struct {
	Brand        string
	SupportEmail string
	Code         string
	Purpose      string
	ValidMinutes int
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Brand}} verification code</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f4f6f8; padding: 24px;">
  <div style="max-width: 560px; margin: auto; background: #ffffff; padding: 24px; border-radius: 8px;">
    <h2 style="color: #0f766e; margin-top: 0;">{{.Brand}}</h2>
    <p>Hello,</p>
    <p>Use the code below to {{.Purpose}}.</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold; text-align: center;">{{.Code}}</p>
    <p>This code is valid for {{.ValidMinutes}} minutes and can be used once.</p>
    <p>If you did not request this, you can safely ignore this email.</p>
    <p style="color: #6b7280; font-size: 12px;">Need help? Contact <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a>.</p>
  </div>
</body>
</html>
`))

// RenderOTP returns the subject and HTML body for a passcode email.
// All values are HTML-escaped by the template.
func RenderOTP(brand Branding, msg OTPMessage) (string, string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, otpTemplateData{
		Brand:        brand.Name,
		SupportEmail: brand.SupportEmail,
		Code:         msg.Code,
		Purpose:      msg.Purpose,
		ValidMinutes: msg.ValidMinutes,
	})
	if err != nil {
		return "", "", fmt.Errorf("render otp email: %w", err)
	}

	subject := fmt.Sprintf("%s: your verification code", brand.Name)
	return subject, buf.String(), nil
}
