package utils

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AddFlash queues a one-time message for the next rendered page.
func AddFlash(ctx *gin.Context, message string) {
	session := sessions.Default(ctx)
	session.AddFlash(message)
	saveSession(ctx, session)
}

// Flashes pops queued messages.
func Flashes(ctx *gin.Context) []string {
	session := sessions.Default(ctx)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	saveSession(ctx, session)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func saveSession(ctx *gin.Context, session sessions.Session) {
	if err := session.Save(); err != nil {
		if log, ok := ctx.Get(ContextLoggerKey); ok {
			log.(*zap.Logger).Warn("session save failed", zap.Error(err))
		}
	}
}
