package controllers

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/cppla/blog/config"
	"github.com/cppla/blog/repository"
	"github.com/cppla/blog/utils"
)

// Env carries the dependencies shared by every controller.
type Env struct {
	Store   *repository.Store
	Config  config.AppConfig
	Tokens  *utils.TokenIssuer
	Revoked *utils.TTLStore
	States  *utils.TTLStore
	Cache   *utils.Cache
	Mailer  *utils.Mailer
	Cookie  utils.IdentityCookie
	Log     *zap.Logger
}

// parseID converts a path segment into a primary key. Zero and garbage are rejected.
func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
