package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blog/forms"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

const msgContactFailed = "Your message could not be sent. Please try again."

// PageController serves the static pages and the contact form.
type PageController struct {
	*Env
}

// NewPageController creates a PageController.
func NewPageController(env *Env) *PageController {
	return &PageController{Env: env}
}

// About renders the static about page.
func (p *PageController) About(ctx *gin.Context) {
	utils.Render(ctx, http.StatusOK, "about.html", gin.H{"PageTitle": "About"})
}

// ContactPage shows the empty contact form.
func (p *PageController) ContactPage(ctx *gin.Context) {
	utils.Render(ctx, http.StatusOK, "contact.html", gin.H{"PageTitle": "Contact", "Form": forms.ContactForm{}})
}

// SubmitContact stores the message and mails it to the site inbox when configured.
// A field is only required to be present; empty values are accepted.
func (p *PageController) SubmitContact(ctx *gin.Context) {
	var form forms.ContactForm
	errs, err := forms.BindPresent(ctx, &form)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Malformed form submission.")
		return
	}
	if errs != nil {
		utils.Render(ctx, http.StatusUnprocessableEntity, "contact.html", gin.H{"PageTitle": "Contact", "Form": form, "Errors": errs})
		return
	}

	contact := &models.Contact{
		Name:    form.Name,
		Email:   form.Email,
		Phone:   form.Phone,
		Message: form.Message,
	}
	if err := p.Store.CreateContact(ctx.Request.Context(), contact); err != nil {
		p.Log.Error("store contact message failed", zap.Error(err))
		utils.AddFlash(ctx, msgContactFailed)
		utils.Render(ctx, http.StatusInternalServerError, "contact.html", gin.H{"PageTitle": "Contact", "Form": form})
		return
	}

	p.notify(contact)
	utils.Render(ctx, http.StatusOK, "contact.html", gin.H{"PageTitle": "Contact", "MsgSent": true})
}

// notify mails the message in the background; failures are only logged.
func (p *PageController) notify(c *models.Contact) {
	inbox := p.Config.Site.ContactInbox
	if inbox == "" || !p.Mailer.Enabled() {
		return
	}
	subject := fmt.Sprintf("[%s] New message from %s", p.Config.Site.Title, c.Name)
	body := fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\n\n%s\n", c.Name, c.Email, c.Phone, c.Message)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.Mailer.Send(ctx, inbox, subject, body); err != nil {
			p.Log.Warn("contact notification failed", zap.Uint("contact_id", c.ID), zap.Error(err))
		}
	}()
}
