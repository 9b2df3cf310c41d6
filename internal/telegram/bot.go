package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rpsarena/backend/internal/game"
	"github.com/rpsarena/backend/internal/ledger"
)

const accountPrefix = "tg:"

// Sender is the subset of *tgbotapi.BotAPI the bot talks through
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Engine is the matchmaking surface driven from chat
type Engine interface {
	Join(ctx context.Context, accountID string) (*game.JoinResult, error)
	Leave(ctx context.Context, accountID string) (int64, error)
	SubmitChoice(ctx context.Context, accountID, sessionID string, choice game.Choice) error
	Economics() game.Economics
}

// Referral holds the referral economics
type Referral struct {
	Reward        int64
	InviteeReward int64
	VIPMultiplier float64
}

// Bot maps chat commands onto the engine and the ledger and delivers match
// events back to players as chat messages
type Bot struct {
	api      Sender
	username string
	store    ledger.Store
	referral Referral
	engine   Engine
}

func New(api Sender, username string, store ledger.Store, referral Referral) *Bot {
	return &Bot{api: api, username: username, store: store, referral: referral}
}

// Bind attaches the engine. The engine needs the bot as a notifier first,
// so binding happens after both exist.
func (b *Bot) Bind(e Engine) {
	b.engine = e
}

// AccountID is the ledger account of a Telegram user
func AccountID(userID int64) string {
	return accountPrefix + strconv.FormatInt(userID, 10)
}

// chatFor returns the private chat of a Telegram-backed account
func chatFor(accountID string) (int64, bool) {
	if !strings.HasPrefix(accountID, accountPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(accountID, accountPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Run consumes updates until ctx is done or the channel closes
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	log.Printf("[TG] Bot @%s polling for updates", b.username)
	for {
		select {
		case <-ctx.Done():
			log.Println("[TG] Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.reply(update.Message.Chat.ID, "ℹ️ Use /help to see the commands", nil)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	accountID := AccountID(msg.From.ID)
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, accountID, msg.From.ID, chatID, strings.TrimSpace(msg.CommandArguments()))
	case "help":
		b.reply(chatID, b.helpText(), nil)
	case "balance":
		b.handleBalance(ctx, accountID, chatID)
	case "invite":
		b.reply(chatID, b.inviteText(ctx, accountID, msg.From.ID), nil)
	case "play":
		b.handlePlay(ctx, accountID, chatID)
	case "leave":
		b.handleLeave(ctx, accountID, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help", nil)
	}
}

func (b *Bot) handleStart(ctx context.Context, accountID string, userID, chatID int64, arg string) {
	if arg != "" {
		if refID, err := strconv.ParseInt(arg, 10, 64); err == nil && refID != userID {
			b.creditReferral(ctx, AccountID(refID), accountID)
		}
	}
	b.reply(chatID, "👋 Welcome to the arena!\n\n"+b.helpText(), menuKeyboard())
}

func (b *Bot) creditReferral(ctx context.Context, referrerID, inviteeID string) {
	fresh, err := ledger.Fresh(ctx, b.store, inviteeID)
	if err != nil {
		log.Printf("[TG] Referral check for %s failed: %v", inviteeID, err)
		return
	}
	if !fresh {
		return
	}
	referrer, err := b.store.Account(ctx, referrerID)
	if err != nil {
		log.Printf("[TG] Referral lookup for %s failed: %v", referrerID, err)
		return
	}
	res, err := ledger.CreditReferral(ctx, b.store, referrerID, inviteeID,
		b.referral.Reward, b.referral.InviteeReward, referrer.ActiveVIP(time.Now()), b.referral.VIPMultiplier)
	if err != nil {
		log.Printf("[TG] Referral %s -> %s not credited: %v", referrerID, inviteeID, err)
		return
	}
	log.Printf("[TG] Referral %s -> %s credited (%d / %d)", referrerID, inviteeID, res.ReferrerCredit, res.InviteeCredit)
	if chat, ok := chatFor(referrerID); ok && res.ReferrerCredit > 0 {
		b.reply(chat, fmt.Sprintf("👥 A friend joined with your link: +%d points", res.ReferrerCredit), nil)
	}
}

func (b *Bot) handleBalance(ctx context.Context, accountID string, chatID int64) {
	acct, err := b.store.Account(ctx, accountID)
	if err != nil {
		log.Printf("[TG] Balance lookup for %s failed: %v", accountID, err)
		b.reply(chatID, "❌ Could not load your balance, try again later", nil)
		return
	}
	text := fmt.Sprintf("💰 Balance: %d points\n👥 Invited friends: %d", acct.Balance, acct.InviteCount)
	if acct.ActiveVIP(time.Now()) {
		text += fmt.Sprintf("\n⭐ VIP until %s", acct.VIPExpiry.Time.Format("2006-01-02"))
	}
	b.reply(chatID, text, nil)
}

func (b *Bot) handlePlay(ctx context.Context, accountID string, chatID int64) {
	if b.engine == nil {
		b.reply(chatID, "Games are not available right now", nil)
		return
	}
	res, err := b.engine.Join(ctx, accountID)
	if err != nil {
		b.reply(chatID, errorText(err), nil)
		return
	}
	if res.SessionID != "" {
		// match found and prompt are delivered through the notifier
		return
	}
	econ := b.engine.Economics()
	b.reply(chatID, fmt.Sprintf("⏳ Looking for an opponent (%d point stake). You get it back if nobody shows up within %v.", econ.EntryFee, econ.WaitWindow),
		tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚪 Leave queue", "leave"),
		)))
}

func (b *Bot) handleLeave(ctx context.Context, accountID string, chatID int64) {
	if b.engine == nil {
		return
	}
	refunded, err := b.engine.Leave(ctx, accountID)
	if err != nil {
		b.reply(chatID, errorText(err), nil)
		return
	}
	b.reply(chatID, fmt.Sprintf("👋 Left the queue, %d point refunded", refunded), nil)
}

// handleCallback serves the inline buttons: "play", "leave", "balance" and
// "rps:<sessionID>:<choice>"
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	accountID := AccountID(q.From.ID)
	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}

	answer := ""
	switch {
	case q.Data == "play":
		b.handlePlay(ctx, accountID, chatID)
	case q.Data == "leave":
		b.handleLeave(ctx, accountID, chatID)
	case q.Data == "balance":
		b.handleBalance(ctx, accountID, chatID)
	case strings.HasPrefix(q.Data, "rps:"):
		answer = b.handleChoice(ctx, accountID, q.Data)
	default:
		answer = "Unknown action"
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, answer)); err != nil {
		log.Printf("[TG] Answer callback failed: %v", err)
	}
}

func (b *Bot) handleChoice(ctx context.Context, accountID, data string) string {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || b.engine == nil {
		return "Invalid choice"
	}
	choice, err := game.ParseChoice(parts[2])
	if err != nil {
		return "Invalid choice"
	}
	if err := b.engine.SubmitChoice(ctx, accountID, parts[1], choice); err != nil {
		return errorText(err)
	}
	return "✅ " + choiceLabel(choice) + " locked in"
}

func (b *Bot) helpText() string {
	return `🎮 Rock-paper-scissors
/play - stake points and find an opponent
/leave - leave the queue and get your stake back
/balance - show your points
/invite - get your referral link`
}

func (b *Bot) inviteText(ctx context.Context, accountID string, userID int64) string {
	reward := b.referral.Reward
	if acct, err := b.store.Account(ctx, accountID); err == nil {
		reward = ledger.ReferralAmount(reward, acct.ActiveVIP(time.Now()), b.referral.VIPMultiplier)
	}
	return fmt.Sprintf("👥 Your invite link:\nhttps://t.me/%s?start=%d\n\nYou get %d points per friend, they get %d.",
		b.username, userID, reward, b.referral.InviteeReward)
}

func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[TG] Send to %d failed: %v", chatID, err)
	}
}

func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎮 Play", "play")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💰 Balance", "balance")),
	)
}

func choiceLabel(c game.Choice) string {
	switch c {
	case game.Rock:
		return "🪨 Rock"
	case game.Paper:
		return "📄 Paper"
	case game.Scissors:
		return "✂️ Scissors"
	}
	return string(c)
}

func errorText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "❌ Not enough points to play"
	case errors.Is(err, game.ErrAlreadyActive):
		return "⚠️ You are already in the queue or in a match"
	case errors.Is(err, game.ErrNotQueued):
		return "You are not in the queue"
	case errors.Is(err, game.ErrSessionNotFound), errors.Is(err, game.ErrStaleSubmission):
		return "⌛ This match is already over"
	case errors.Is(err, game.ErrNotParticipant):
		return "This is not your match"
	case errors.Is(err, game.ErrShuttingDown):
		return "Games are paused, try again shortly"
	}
	log.Printf("[TG] Unexpected engine error: %v", err)
	return "❌ Something went wrong"
}
