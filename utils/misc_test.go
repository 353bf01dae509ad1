package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/blog/config"
)

func TestSanitizePostKeepsImagesAndStripsScripts(t *testing.T) {
	out := SanitizePost(`<p>Hello <strong>world</strong></p><img src="https://example.com/a.png"><script>alert(1)</script><a href="javascript:x()">x</a>`)
	assert.Contains(t, out, "<p>Hello <strong>world</strong></p>")
	assert.Contains(t, out, `<img src="https://example.com/a.png"`)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestSanitizeCommentDropsImages(t *testing.T) {
	out := SanitizeComment(`<h1>Hi</h1><p>nice <em>post</em></p><img src="https://example.com/a.png"><a href="https://example.com">link</a>`)
	assert.Contains(t, out, "<p>nice <em>post</em></p>")
	assert.NotContains(t, out, "<img")
	assert.NotContains(t, out, "<h1>")
	assert.Contains(t, out, `rel="nofollow"`)
}

func TestGravatar(t *testing.T) {
	a := Gravatar(" A@x.com ")
	b := Gravatar("a@x.com")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "https://www.gravatar.com/avatar/"))
	assert.True(t, strings.HasSuffix(a, "?s=100&d=retro&r=g"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(a, "https://www.gravatar.com/avatar/"), "?s=100&d=retro&r=g"), 32)
}

func TestBuildMessageEncodesHeaders(t *testing.T) {
	msg := buildMessage(config.SMTPConfig{From: "blog@example.com", FromName: "Blög"}, "me@example.com", "New message", "hello")

	assert.Contains(t, msg, "From: =?UTF-8?b?")
	assert.Contains(t, msg, "<blog@example.com>\r\n")
	assert.Contains(t, msg, "Subject: New message\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nhello"))
}

func TestMailerDisabled(t *testing.T) {
	m := NewMailer(config.SMTPConfig{})
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.Send(context.Background(), "a@x.com", "s", "b"), ErrMailerDisabled)
}
