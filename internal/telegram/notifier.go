package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rpsarena/backend/internal/game"
)

// The bot is a game.Notifier for accounts that came from Telegram. Events
// for other accounts are ignored.

func (b *Bot) send(accountID, text string, markup interface{}) error {
	chatID, ok := chatFor(accountID)
	if !ok {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %s: %w", accountID, err)
	}
	return nil
}

func (b *Bot) NotifyMatchFound(_ context.Context, sessionID, player1ID, player2ID string) error {
	return errors.Join(
		b.send(player1ID, "🎯 Opponent found! Get ready to choose.", nil),
		b.send(player2ID, "🎯 Opponent found! Get ready to choose.", nil),
	)
}

func (b *Bot) NotifyChoicePrompt(_ context.Context, sessionID, accountID string, deadline time.Time) error {
	secs := int(time.Until(deadline).Round(time.Second).Seconds())
	if secs < 0 {
		secs = 0
	}
	row := tgbotapi.NewInlineKeyboardRow()
	for _, c := range []game.Choice{game.Rock, game.Paper, game.Scissors} {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(choiceLabel(c), "rps:"+sessionID+":"+string(c)))
	}
	return b.send(accountID, fmt.Sprintf("✊ Make your choice! You have %d seconds.", secs), tgbotapi.NewInlineKeyboardMarkup(row))
}

func (b *Bot) NotifyResult(_ context.Context, sessionID, accountID string, outcome game.Outcome, pointsDelta int64) error {
	var text string
	switch outcome {
	case game.OutcomeWin:
		text = fmt.Sprintf("🏆 You won! +%d points", pointsDelta)
	case game.OutcomeLose:
		text = fmt.Sprintf("😞 You lost. %d points", pointsDelta)
	case game.OutcomeDraw:
		text = "🤝 Draw! Your stake was returned"
	case game.OutcomeForfeit:
		text = fmt.Sprintf("⌛ You did not choose in time. %d points", pointsDelta)
	default:
		return nil
	}
	return b.send(accountID, text, menuKeyboard())
}

func (b *Bot) NotifyQueueTimeout(_ context.Context, accountID string, refunded int64) error {
	return b.send(accountID, fmt.Sprintf("😴 No opponent found. %d point refunded", refunded), menuKeyboard())
}
