// Package forms declares the HTML forms accepted by the blog and validates them.
package forms

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Form is implemented by every submission type. Normalize runs before validation.
type Form interface {
	Normalize()
}

// Errors maps a form field name to a human readable message.
type Errors map[string]string

// Has reports whether field failed validation.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// RegisterForm is posted by /register.
type RegisterForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	Name     string `form:"name" binding:"required"`
}

// Normalize lowercases the email and trims the name.
func (f *RegisterForm) Normalize() {
	f.Email = normalizeEmail(f.Email)
	f.Name = strings.TrimSpace(f.Name)
}

// LoginForm is posted by /login.
type LoginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

// Normalize lowercases the email.
func (f *LoginForm) Normalize() {
	f.Email = normalizeEmail(f.Email)
}

// PostForm creates or edits a blog post.
type PostForm struct {
	Title    string `form:"title" binding:"required"`
	Subtitle string `form:"subtitle" binding:"required"`
	ImgURL   string `form:"img_url" binding:"required,url"`
	Body     string `form:"body" binding:"required"`
}

// Normalize trims every field.
func (f *PostForm) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Subtitle = strings.TrimSpace(f.Subtitle)
	f.ImgURL = strings.TrimSpace(f.ImgURL)
	f.Body = strings.TrimSpace(f.Body)
}

// CommentForm is posted under a post page.
type CommentForm struct {
	Text string `form:"comment_text" binding:"required"`
}

// Normalize trims the comment text.
func (f *CommentForm) Normalize() {
	f.Text = strings.TrimSpace(f.Text)
}

// ContactForm carries no validation rules; BindPresent only checks that every
// field was submitted, empty values included.
type ContactForm struct {
	Name    string `form:"name"`
	Email   string `form:"email"`
	Phone   string `form:"phone"`
	Message string `form:"message"`
}

// Normalize trims every field.
func (f *ContactForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Message = strings.TrimSpace(f.Message)
}

// Bind decodes the request body into f, normalizes it and validates it.
// Field errors are returned as Errors; err is reserved for malformed requests.
func Bind(ctx *gin.Context, f Form) (Errors, error) {
	if err := ctx.Request.ParseForm(); err != nil {
		return nil, err
	}
	if err := binding.MapFormWithTag(f, ctx.Request.PostForm, "form"); err != nil {
		return nil, err
	}
	f.Normalize()
	return Validate(f), nil
}

// BindPresent decodes f like Bind, but the only rule is that every form-tagged
// field of f appears in the submission. Values may be empty.
func BindPresent(ctx *gin.Context, f Form) (Errors, error) {
	if err := ctx.Request.ParseForm(); err != nil {
		return nil, err
	}
	if err := binding.MapFormWithTag(f, ctx.Request.PostForm, "form"); err != nil {
		return nil, err
	}
	f.Normalize()
	return missing(f, ctx.Request.PostForm), nil
}

func missing(f Form, submitted url.Values) Errors {
	var out Errors
	t := reflect.TypeOf(f).Elem()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("form")
		if tag == "" || tag == "-" {
			continue
		}
		if _, ok := submitted[tag]; !ok {
			if out == nil {
				out = Errors{}
			}
			out[tag] = message("required")
		}
	}
	return out
}

// Validate runs the binding rules of f and translates failures into Errors.
func Validate(f Form) Errors {
	err := binding.Validator.ValidateStruct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{"": err.Error()}
	}
	out := Errors{}
	t := reflect.TypeOf(f).Elem()
	for _, fe := range verrs {
		name := fe.StructField()
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if tag := sf.Tag.Get("form"); tag != "" {
				name = tag
			}
		}
		if _, seen := out[name]; !seen {
			out[name] = message(fe.Tag())
		}
	}
	return out
}

func message(tag string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "url":
		return "Invalid URL."
	default:
		return "Invalid value."
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
