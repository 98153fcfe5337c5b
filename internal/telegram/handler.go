package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/video-explorer/internal/domain"
)

type Handler struct {
	bot *Bot
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			h.handleStart(ctx, msg)
		case "help":
			h.handleHelp(ctx, msg)
		case "health":
			h.handleHealth(ctx, msg)
		case "search":
			h.handleSearch(ctx, msg)
		default:
			h.bot.Send(msg.Chat.ID, "Неизвестная команда. Используйте /help для справки.")
		}
		return
	}

	// обычный текст - тоже поиск
	h.handleSearch(ctx, msg)
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.Send(msg.Chat.ID, "Добро пожаловать! Я ищу видео и посты в Instagram и Facebook.\n\nПросто отправьте хештег или запрос, например: #golang\n\nИспользуйте /help для справки.")
}

func (h *Handler) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	helpText := `<b>Доступные команды:</b>

/search запрос - Поиск видео и постов
/health - Состояние источников данных
/help - Показать эту справку

<b>Модификаторы поиска:</b>
• limit:N - количество результатов (1-50)
• platform:instagram|facebook - платформа
• media:video|photo|reel|carousel - тип медиа
• from:2024-01-01 / to:2024-06-01 - диапазон дат

<b>Примеры:</b>
• #golang - поиск по хештегу
• @natgeo - посты аккаунта
• /search котики media:video limit:20

<b>Маркеры результатов:</b>
● живые данные · ◐ из кеша · ○ резервные`

	h.bot.Send(msg.Chat.ID, helpText)
}

func (h *Handler) handleHealth(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.SendTyping(msg.Chat.ID)

	health := h.bot.explorer.Health(ctx)
	h.bot.Send(msg.Chat.ID, FormatHealth(health))
}

func (h *Handler) handleSearch(ctx context.Context, msg *tgbotapi.Message) {
	req := ParseSearchCommand(msg.Text)

	h.bot.SendTyping(msg.Chat.ID)

	env, err := h.bot.explorer.Search(ctx, req)
	if err != nil {
		h.bot.logger.Error("search failed",
			zap.Error(err),
			zap.Int64("user_id", msg.From.ID),
		)
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	for _, m := range SplitMessage(FormatEnvelope(env), 4096) { // лимит телеграма
		if err := h.bot.Send(msg.Chat.ID, m); err != nil {
			h.bot.logger.Error("failed to send message", zap.Error(err))
		}
	}
}

func mapErrorToMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return "Пустой запрос. Введите хештег или текст для поиска."
	case errors.Is(err, domain.ErrQueryTooLong):
		return fmt.Sprintf("Запрос слишком длинный. Максимум %d символов.", domain.MaxQueryLength)
	case errors.Is(err, domain.ErrLimitOutOfRange):
		return fmt.Sprintf("Количество результатов должно быть от 1 до %d.", domain.MaxResultLimit)
	case errors.Is(err, domain.ErrInvalidDates):
		return "Некорректный диапазон дат: from должен быть раньше to."
	case errors.Is(err, domain.ErrRateLimited):
		return "Слишком много запросов к источнику. Попробуйте через минуту."
	case errors.Is(err, domain.ErrCircuitOpen):
		return "Источник временно отключен из-за ошибок. Попробуйте позже."
	case errors.Is(err, domain.ErrAllSourcesExhausted):
		return "Все источники недоступны, и свежих данных в кеше нет. Попробуйте позже."
	case errors.Is(err, domain.ErrUnknownProvider):
		return "Неизвестный источник данных."
	default:
		return "Произошла ошибка. Попробуйте позже."
	}
}
