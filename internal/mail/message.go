// Package mail delivers account emails: verification links, reset links and confirmations.
package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"
)

// Kind identifies the purpose of an email
type Kind string

const (
	KindVerification Kind = "verification"
	KindReset        Kind = "reset"
	KindConfirmation Kind = "confirmation"
)

// Message is a rendered email ready for a transport
type Message struct {
	Kind     Kind   `json:"kind"`
	To       string `json:"to"`
	Username string `json:"username"`
	Subject  string `json:"subject"`
	Link     string `json:"link,omitempty"`
	Text     string `json:"text"`
	HTML     string `json:"html"`
}

// Links holds the pages the emails point to
type Links struct {
	AppName   string
	VerifyURL string
	ResetURL  string
	LoginURL  string
}

type templateData struct {
	AppName  string
	Username string
	Link     string
}

// Composer renders the text and HTML bodies of every email kind
type Composer struct {
	links Links
	text  *texttemplate.Template
	html  *htmltemplate.Template
}

// NewComposer parses the built-in templates
func NewComposer(links Links) (*Composer, error) {
	if links.AppName == "" {
		links.AppName = "Hybrid Auth"
	}

	text, err := texttemplate.New("text").Parse(textTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}
	html, err := htmltemplate.New("html").Parse(htmlTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html templates: %w", err)
	}

	return &Composer{links: links, text: text, html: html}, nil
}

// Verification renders the email carrying the verification link
func (c *Composer) Verification(username, email, token string) (Message, error) {
	link, err := withQuery(c.links.VerifyURL, url.Values{"username": {username}, "token": {token}})
	if err != nil {
		return Message{}, err
	}
	return c.render(KindVerification, "Verify your "+c.links.AppName+" account", username, email, link)
}

// Reset renders the email carrying the password reset link
func (c *Composer) Reset(username, email, token string) (Message, error) {
	link, err := withQuery(c.links.ResetURL, url.Values{"token": {token}})
	if err != nil {
		return Message{}, err
	}
	return c.render(KindReset, "Reset your "+c.links.AppName+" password", username, email, link)
}

// Confirmation renders the email sent once an account is verified
func (c *Composer) Confirmation(username, email string) (Message, error) {
	return c.render(KindConfirmation, "Account verified - welcome to "+c.links.AppName, username, email, c.links.LoginURL)
}

func (c *Composer) render(kind Kind, subject, username, email, link string) (Message, error) {
	data := templateData{AppName: c.links.AppName, Username: username, Link: link}

	var text, html bytes.Buffer
	if err := c.text.ExecuteTemplate(&text, string(kind), data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s text: %w", kind, err)
	}
	if err := c.html.ExecuteTemplate(&html, string(kind), data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s html: %w", kind, err)
	}

	return Message{
		Kind:     kind,
		To:       email,
		Username: username,
		Subject:  subject,
		Link:     link,
		Text:     text.String(),
		HTML:     html.String(),
	}, nil
}

func withQuery(base string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid link base %q: %w", base, err)
	}
	q := u.Query()
	for key, values := range query {
		q[key] = values
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
