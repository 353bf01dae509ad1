package utils

import "github.com/microcosm-cc/bluemonday"

var (
	postPolicy    = newPostPolicy()
	commentPolicy = newCommentPolicy()
)

// Post bodies come from the admin editor: UGC markup plus inline images,
// with every link marked nofollow and opened in a new tab.
func newPostPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Comments keep paragraphs, emphasis, lists, quotes and links only.
func newCommentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	p.AllowElements("p", "br", "b", "strong", "i", "em", "u", "s",
		"ul", "ol", "li", "blockquote", "code", "pre")
	return p
}

// SanitizePost cleans a post body so it can be rendered as trusted HTML.
func SanitizePost(body string) string {
	return postPolicy.Sanitize(body)
}

// SanitizeComment cleans comment text; images and headings are dropped.
func SanitizeComment(text string) string {
	return commentPolicy.Sanitize(text)
}
