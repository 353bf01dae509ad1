package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blog/forms"
	"github.com/cppla/blog/models"
	"github.com/cppla/blog/repository"
	"github.com/cppla/blog/utils"
)

// PostListCacheKey holds the rendered listing's data. Every post mutation drops it.
const (
	postCachePrefix  = "cache:posts:"
	PostListCacheKey = postCachePrefix + "list"
)

// Messages shown by the post pages.
const (
	MsgCommentLogin    = "You need to login or register to comment."
	MsgPostSaveFailed  = "An error occurred while saving the post. Please try again."
	MsgPostDuplicate   = "A post with that title already exists."
	MsgPostDeleteFail  = "An error occurred while deleting the post. Please try again."
	MsgCommentFailed   = "An error occurred while saving your comment. Please try again."
	msgPostNotFound    = "The post you are looking for does not exist."
	msgPostLoadFailure = "The post could not be loaded. Please try again."
)

// PostController manages CRUD operations for posts and comments.
type PostController struct {
	*Env
}

// NewPostController creates a new PostController instance.
func NewPostController(env *Env) *PostController {
	return &PostController{Env: env}
}

// ListPosts renders the home page. It never fails: a storage error is logged
// and the page shows no posts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	var posts []models.Post
	if !p.Cache.GetJSON(reqCtx, PostListCacheKey, &posts) {
		var err error
		posts, err = p.Store.ListPosts(reqCtx)
		if err != nil {
			p.Log.Error("list posts failed", zap.Error(err))
		} else {
			p.Cache.SetJSON(reqCtx, PostListCacheKey, posts, utils.DefaultCacheTTL)
		}
	}
	utils.Render(ctx, http.StatusOK, "index.html", gin.H{"Posts": posts})
}

// ShowPost renders a post with its comments and the comment form.
func (p *PostController) ShowPost(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	p.renderPost(ctx, http.StatusOK, post, forms.CommentForm{}, nil)
}

// CreateComment stores a comment by the logged in user, then redirects back to the post.
// An unknown post is a 404 even for anonymous visitors; they are sent to /login
// and the text is discarded.
func (p *PostController) CreateComment(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	user := utils.CurrentUser(ctx)
	if user == nil {
		utils.AddFlash(ctx, MsgCommentLogin)
		utils.Redirect(ctx, "/login")
		return
	}

	var form forms.CommentForm
	errs, err := forms.Bind(ctx, &form)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Malformed form submission.")
		return
	}
	if errs != nil {
		p.renderPost(ctx, http.StatusUnprocessableEntity, post, form, errs)
		return
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: user.ID,
		Text:     utils.SanitizeComment(form.Text),
	}
	if err := p.Store.CreateComment(ctx.Request.Context(), comment); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.ErrorPage(ctx, http.StatusNotFound, msgPostNotFound)
			return
		}
		p.Log.Error("create comment failed", zap.Uint("post_id", post.ID), zap.Error(err))
		utils.AddFlash(ctx, MsgCommentFailed)
	}
	utils.Redirect(ctx, postURL(post.ID))
}

// NewPostPage shows the empty post editor.
func (p *PostController) NewPostPage(ctx *gin.Context) {
	p.renderEditor(ctx, http.StatusOK, forms.PostForm{}, nil, 0)
}

// CreatePost publishes a new post authored by the current admin.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var form forms.PostForm
	errs, err := forms.Bind(ctx, &form)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Malformed form submission.")
		return
	}
	if errs != nil {
		p.renderEditor(ctx, http.StatusUnprocessableEntity, form, errs, 0)
		return
	}

	post := &models.Post{
		AuthorID: utils.CurrentUser(ctx).ID,
		Title:    form.Title,
		Subtitle: form.Subtitle,
		Date:     time.Now().Format(models.PostDateLayout),
		Body:     utils.SanitizePost(form.Body),
		ImgURL:   form.ImgURL,
	}
	if err := p.Store.CreatePost(ctx.Request.Context(), post); err != nil {
		p.saveFailed(ctx, form, 0, err)
		return
	}

	p.Cache.InvalidatePrefix(ctx.Request.Context(), postCachePrefix)
	p.Log.Info("post created", zap.Uint("post_id", post.ID))
	utils.Redirect(ctx, "/")
}

// EditPostPage shows the editor pre-filled with the stored post.
func (p *PostController) EditPostPage(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	form := forms.PostForm{
		Title:    post.Title,
		Subtitle: post.Subtitle,
		ImgURL:   post.ImgURL,
		Body:     post.Body,
	}
	p.renderEditor(ctx, http.StatusOK, form, nil, post.ID)
}

// UpdatePost saves edits. Author and creation date never change.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	var form forms.PostForm
	errs, err := forms.Bind(ctx, &form)
	if err != nil {
		utils.ErrorPage(ctx, http.StatusBadRequest, "Malformed form submission.")
		return
	}
	if errs != nil {
		p.renderEditor(ctx, http.StatusUnprocessableEntity, form, errs, post.ID)
		return
	}

	post.Title = form.Title
	post.Subtitle = form.Subtitle
	post.ImgURL = form.ImgURL
	post.Body = utils.SanitizePost(form.Body)
	if err := p.Store.UpdatePost(ctx.Request.Context(), post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.ErrorPage(ctx, http.StatusNotFound, msgPostNotFound)
			return
		}
		p.saveFailed(ctx, form, post.ID, err)
		return
	}

	p.Cache.InvalidatePrefix(ctx.Request.Context(), postCachePrefix)
	p.Log.Info("post updated", zap.Uint("post_id", post.ID))
	utils.Redirect(ctx, postURL(post.ID))
}

// DeletePost removes a post and its comments immediately.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.ErrorPage(ctx, http.StatusNotFound, msgPostNotFound)
		return
	}
	if err := p.Store.DeletePost(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.ErrorPage(ctx, http.StatusNotFound, msgPostNotFound)
			return
		}
		p.Log.Error("delete post failed", zap.Uint("post_id", id), zap.Error(err))
		utils.AddFlash(ctx, MsgPostDeleteFail)
		utils.Redirect(ctx, "/")
		return
	}

	p.Cache.InvalidatePrefix(ctx.Request.Context(), postCachePrefix)
	p.Log.Info("post deleted", zap.Uint("post_id", id))
	utils.Redirect(ctx, "/")
}

// loadPost resolves the :id parameter. It renders 404/500 itself and returns false on failure.
func (p *PostController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.ErrorPage(ctx, http.StatusNotFound, msgPostNotFound)
		return nil, false
	}
	post, err := p.Store.PostByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.ErrorPage(ctx, http.StatusNotFound, msgPostNotFound)
			return nil, false
		}
		p.Log.Error("load post failed", zap.Uint("post_id", id), zap.Error(err))
		utils.ErrorPage(ctx, http.StatusInternalServerError, msgPostLoadFailure)
		return nil, false
	}
	return post, true
}

func (p *PostController) saveFailed(ctx *gin.Context, form forms.PostForm, postID uint, err error) {
	if errors.Is(err, repository.ErrDuplicateTitle) {
		utils.AddFlash(ctx, MsgPostDuplicate)
		p.renderEditor(ctx, http.StatusConflict, form, forms.Errors{"title": MsgPostDuplicate}, postID)
		return
	}
	p.Log.Error("save post failed", zap.Uint("post_id", postID), zap.Error(err))
	utils.AddFlash(ctx, MsgPostSaveFailed)
	p.renderEditor(ctx, http.StatusInternalServerError, form, nil, postID)
}

func (p *PostController) renderPost(ctx *gin.Context, status int, post *models.Post, form forms.CommentForm, errs forms.Errors) {
	utils.Render(ctx, status, "post.html", gin.H{
		"PageTitle": post.Title,
		"Post":      post,
		"Form":      form,
		"Errors":    errs,
	})
}

// renderEditor shows make-post.html; postID zero means a new post.
func (p *PostController) renderEditor(ctx *gin.Context, status int, form forms.PostForm, errs forms.Errors, postID uint) {
	data := gin.H{
		"PageTitle": "New Post",
		"Form":      form,
		"Errors":    errs,
		"IsEdit":    postID != 0,
		"Action":    "/new-post",
	}
	if postID != 0 {
		data["PageTitle"] = "Edit Post"
		data["Action"] = "/edit-post/" + strconv.FormatUint(uint64(postID), 10)
	}
	utils.Render(ctx, status, "make-post.html", data)
}

func postURL(id uint) string {
	return "/post/" + strconv.FormatUint(uint64(id), 10)
}
