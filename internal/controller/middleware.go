package controller

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// onlyDashboardChat drops messages from chats other than the configured one
func (c *BotController) onlyDashboardChat(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		if update.Message.Chat.ID != c.chatID {
			c.logger.Warn("Message from foreign chat ignored",
				zap.Int64("chat_id", update.Message.Chat.ID))
			return
		}
		next(ctx, b, update)
	}
}
