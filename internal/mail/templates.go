package mail

const textTemplates = `
{{define "verification"}}Hello {{.Username}},

Welcome to {{.AppName}}! To finish creating your account, verify your email address by opening the link below:

{{.Link}}

The link expires in 24 hours. After that you will need to request a new verification email.

If you did not create an account, ignore this email.

The {{.AppName}} Team
{{end}}

{{define "reset"}}Hello {{.Username}},

We received a request to reset the password of your {{.AppName}} account. If you made this request, open the link below to choose a new password:

{{.Link}}

The link expires in 1 hour and can be used once.

If you did not request a reset, ignore this email. Your password stays unchanged unless the link is used.

The {{.AppName}} Team
{{end}}

{{define "confirmation"}}Congratulations {{.Username}}!

Your account has been verified. You can now log in and use every feature of {{.AppName}}.
{{if .Link}}
Log in: {{.Link}}
{{end}}
The {{.AppName}} Team
{{end}}
`

const htmlTemplates = `
{{define "layout_start"}}<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.AppName}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
<h2 style="color: #4a6cf7;">{{.AppName}}</h2>{{end}}

{{define "layout_end"}}<p style="color: #888; font-size: 12px;">The {{.AppName}} Team</p>
</body></html>{{end}}

{{define "verification"}}{{template "layout_start" .}}
<p>Hello {{.Username}},</p>
<p>Welcome to {{.AppName}}! To finish creating your account, verify your email address:</p>
<p><a href="{{.Link}}" style="background: #4a6cf7; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">Verify email</a></p>
<p>The link expires in 24 hours.</p>
<p>If you did not create an account, ignore this email.</p>
{{template "layout_end" .}}{{end}}

{{define "reset"}}{{template "layout_start" .}}
<p>Hello {{.Username}},</p>
<p>We received a request to reset the password of your {{.AppName}} account.</p>
<p><a href="{{.Link}}" style="background: #4a6cf7; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
<p>The link expires in 1 hour and can be used once.</p>
<p>If you did not request a reset, ignore this email.</p>
{{template "layout_end" .}}{{end}}

{{define "confirmation"}}{{template "layout_start" .}}
<p>Congratulations {{.Username}}!</p>
<p>Your account has been verified. You can now log in and use every feature of {{.AppName}}.</p>
{{if .Link}}<p><a href="{{.Link}}">Log in</a></p>{{end}}
{{template "layout_end" .}}{{end}}
`
