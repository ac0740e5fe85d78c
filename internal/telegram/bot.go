package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/dvoengpt-sudo/ubm-bot/internal/config"
	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
	"github.com/dvoengpt-sudo/ubm-bot/internal/service"
)

var btnCheckSub = tele.Btn{Unique: "check_sub", Text: "✅ Проверил подписку"}

type Bot struct {
	bot         *tele.Bot
	cfg         *config.Config
	userService *service.UserService
	referralSvc *service.ReferralService
	statsSvc    *service.StatsService
	gate        *service.SubscriptionGate
	recheck     *service.RecheckWorker
}

func NewBot(
	cfg *config.Config,
	userService *service.UserService,
	statsSvc *service.StatsService,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Telegram.BotToken,
		Poller: &tele.LongPoller{Timeout: 60 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:         bot,
		cfg:         cfg,
		userService: userService,
		statsSvc:    statsSvc,
	}

	b.registerHandlers()

	return b, nil
}

// SetReferralService wires the crediting engine and its gate. The gate's
// membership client is this bot, so the engine cannot exist before it.
func (b *Bot) SetReferralService(svc *service.ReferralService) {
	b.referralSvc = svc
	b.gate = svc.Gate()
}

func (b *Bot) SetRecheckWorker(w *service.RecheckWorker) {
	b.recheck = w
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/check", b.handleCheck)
	b.bot.Handle("/ref", b.handleRef)
	b.bot.Handle("/me", b.handleMe)
	b.bot.Handle("/top", b.handleTop)
	b.bot.Handle("/stats", b.handleStats)

	b.bot.Handle(&btnCheckSub, b.handleCheckSubCallback)
}

func (b *Bot) GetBotUsername() string {
	return b.bot.Me.Username
}

func (b *Bot) StartPolling(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	b.bot.Start()
}

// ChatMemberStatus implements service.MembershipClient. The underlying bot
// API calls carry no context, so the query runs in a goroutine and the
// caller's deadline wins.
func (b *Bot) ChatMemberStatus(ctx context.Context, channel model.ChannelRef, userID int64) (model.MemberStatus, error) {
	type result struct {
		status model.MemberStatus
		err    error
	}
	done := make(chan result, 1)

	go func() {
		var recipient tele.Recipient = tele.ChatID(channel.ChatID)
		if channel.Username != "" {
			chat, err := b.bot.ChatByUsername(channel.Username)
			if err != nil {
				done <- result{model.MemberStatusUnknown, err}
				return
			}
			recipient = chat
		}

		member, err := b.bot.ChatMemberOf(recipient, &tele.User{ID: userID})
		if err != nil {
			done <- result{model.MemberStatusUnknown, err}
			return
		}
		done <- result{mapMemberStatus(member.Role), nil}
	}()

	select {
	case <-ctx.Done():
		return model.MemberStatusUnknown, ctx.Err()
	case r := <-done:
		return r.status, r.err
	}
}

func mapMemberStatus(role tele.MemberStatus) model.MemberStatus {
	switch role {
	case tele.Creator:
		return model.MemberStatusOwner
	case tele.Administrator:
		return model.MemberStatusAdministrator
	case tele.Member:
		return model.MemberStatusMember
	case tele.Left:
		return model.MemberStatusLeft
	case tele.Kicked:
		return model.MemberStatusKicked
	default:
		return model.MemberStatusUnknown
	}
}

// NotifyReferralApplied implements service.Notifier: admin broadcast about a
// freshly credited referral.
func (b *Bot) NotifyReferralApplied(referrerID, referredID int64) {
	text := fmt.Sprintf("🎉 Новый реферал!\nРеферер: <code>%d</code>\nПриглашённый: <code>%d</code>", referrerID, referredID)
	for _, adminID := range b.cfg.Telegram.AdminIDs {
		if _, err := b.bot.Send(tele.ChatID(adminID), text, tele.ModeHTML); err != nil {
			log.Printf("Failed to notify admin %d: %v", adminID, err)
		}
	}
}

// NotifyAutoCheckCredited implements service.Notifier: tells the referred
// user the deferred claim went through on the automatic recheck.
func (b *Bot) NotifyAutoCheckCredited(userID int64) {
	if _, err := b.bot.Send(tele.ChatID(userID), "✅ Подписка подтверждена автоматически, рефералка начислена!"); err != nil {
		log.Printf("Failed to notify user %d: %v", userID, err)
	}
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()

	user, _, err := b.userService.GetOrCreateUser(ctx, service.TelegramUser{
		ID:        sender.ID,
		Username:  optional(sender.Username),
		FirstName: optional(sender.FirstName),
	})
	if err != nil {
		return err
	}

	referrerID, hasClaim := parseStartPayload(c.Message().Payload)

	var outcome model.ClaimOutcome
	if hasClaim {
		outcome, err = b.referralSvc.HandleIncomingClaim(ctx, referrerID, user.ID)
		if err != nil {
			return err
		}
	}

	var subscribed bool
	switch outcome {
	case model.ClaimDeferred:
		subscribed = false
	case model.ClaimAppliedNow, model.ClaimAlreadyDone:
		subscribed = true
	default:
		subscribed = b.gate.IsSubscribedToAll(ctx, user.ID)
	}

	parts := []string{"👋 Добро пожаловать!"}
	if !subscribed && b.gate.Required() {
		parts = append(parts, "Чтобы пользоваться ботом и получить реферал-бонус — подпишись на каналы ниже:", "")
	} else {
		parts = append(parts, "Готово, ты можешь пользоваться ботом.")
	}

	switch outcome {
	case model.ClaimAppliedNow:
		parts = append(parts, "✅ Твоя рефералка засчитана!")
	case model.ClaimDeferred:
		parts = append(parts, "ℹ️ Рефералка будет засчитана после подписки и автопроверки/кнопки.")
	default:
		parts = append(parts, "ℹ️ Начисление по реф-ссылке происходит один раз при первом старте.")
	}

	parts = append(parts,
		"",
		b.profileText(user),
		"",
		fmt.Sprintf("🔗 Твоя реф-ссылка:\n<code>%s</code>", b.referralLink(user.ID)),
		"",
		"Команды:\n• /ref — моя ссылка и счёт\n• /me — личная статистика\n• /top — топ-10\n• /stats — общая статистика (для админов)\n• /check — проверить подписку",
	)

	text := strings.Join(parts, "\n")

	if outcome == model.ClaimDeferred && b.recheck != nil {
		b.recheck.Schedule(user.ID)
	}

	if !subscribed && b.gate.Required() {
		return c.Send(text, b.subKeyboard(), tele.ModeHTML)
	}
	return c.Send(text, tele.ModeHTML)
}

func (b *Bot) handleCheck(c tele.Context) error {
	ctx := context.Background()
	outcome, applied, err := b.referralSvc.ResolveClaim(ctx, c.Sender().ID)
	if err != nil {
		return err
	}

	switch outcome {
	case model.ResolveStillBlocked:
		return c.Send("❌ Пока не вижу подписки на все обязательные каналы. Подпишись и жми /check ещё раз.")
	case model.ResolveNothingPending:
		return c.Send("✅ Подписка подтверждена.")
	default:
		if applied {
			return c.Send("✅ Подписка подтверждена, рефералка начислена!")
		}
		return c.Send("✅ Подписка подтверждена. Рефералка уже была начислена ранее.")
	}
}

func (b *Bot) handleCheckSubCallback(c tele.Context) error {
	ctx := context.Background()
	outcome, applied, err := b.referralSvc.ResolveClaim(ctx, c.Sender().ID)
	if err != nil {
		return err
	}

	switch outcome {
	case model.ResolveStillBlocked:
		return c.Respond(&tele.CallbackResponse{
			Text:      "Подписка не найдена. Проверь, что ты вступил(а) во все каналы.",
			ShowAlert: true,
		})
	case model.ResolveNothingPending:
		return c.Edit("✅ Подписка подтверждена. (Реферер не найден в ожидании)")
	default:
		if applied {
			return c.Edit("✅ Подписка подтверждена, рефералка начислена!")
		}
		return c.Edit("✅ Подписка подтверждена. Рефералка уже была начислена ранее.")
	}
}

func (b *Bot) handleRef(c tele.Context) error {
	ctx := context.Background()
	user, _, err := b.userService.GetOrCreateUser(ctx, service.TelegramUser{
		ID:       c.Sender().ID,
		Username: optional(c.Sender().Username),
	})
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%s\n\n🔗 Твоя реф-ссылка:\n<code>%s</code>", b.profileText(user), b.referralLink(user.ID))
	return c.Send(text, tele.ModeHTML)
}

func (b *Bot) handleMe(c tele.Context) error {
	ctx := context.Background()
	user, _, err := b.userService.GetOrCreateUser(ctx, service.TelegramUser{
		ID:       c.Sender().ID,
		Username: optional(c.Sender().Username),
	})
	if err != nil {
		return err
	}

	events, err := b.statsSvc.RecentReferrals(ctx, user.ID, 10)
	if err != nil {
		return err
	}

	history := "пока никого"
	if len(events) > 0 {
		lines := make([]string, 0, len(events))
		for _, e := range events {
			lines = append(lines, fmt.Sprintf("• <code>%d</code> (%s)", e.ReferredID, e.CreatedAt.Format("02.01.2006 15:04")))
		}
		history = strings.Join(lines, "\n")
	}

	text := fmt.Sprintf("%s\n\nПоследние приглашённые:\n%s", b.profileText(user), history)
	return c.Send(text, tele.ModeHTML)
}

func (b *Bot) handleTop(c tele.Context) error {
	top, err := b.statsSvc.Leaderboard(context.Background())
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return c.Send("Пока нет данных 👀")
	}

	lines := make([]string, 0, len(top))
	for i, u := range top {
		lines = append(lines, fmt.Sprintf("%d. %s — 👥 %d | 💰 %.2f", i+1, u.DisplayName(), u.ReferralsCount, u.Balance))
	}
	return c.Send("🏆 Топ-10:\n" + strings.Join(lines, "\n"))
}

func (b *Bot) handleStats(c tele.Context) error {
	if !b.cfg.Telegram.IsAdmin(c.Sender().ID) {
		return c.Send("Эта команда только для админов.")
	}

	stats, err := b.statsSvc.GlobalStats(context.Background())
	if err != nil {
		return err
	}

	text := fmt.Sprintf(`📊 Общая статистика:
Пользователей: <b>%d</b>
Реферал-событий (уникальных): <b>%d</b>
Сумма рефералов по пользователям: <b>%d</b>
Начислено всего: <b>%.2f</b>`,
		stats.TotalUsers,
		stats.TotalEvents,
		stats.TotalReferralSum,
		stats.TotalBalance,
	)
	return c.Send(text, tele.ModeHTML)
}

func (b *Bot) profileText(u *model.User) string {
	need := b.cfg.Referral.PayoutTarget - u.ReferralsCount
	if need < 0 {
		need = 0
	}
	username := "—"
	if u.Username != nil && *u.Username != "" {
		username = *u.Username
	}
	return fmt.Sprintf(`👤 Вы: <code>%d</code> (@%s)
👥 Рефералов: <b>%d</b>
💰 Баланс: <b>%.2f</b>
🎯 До цели %d: <b>%d</b>`,
		u.ID, username, u.ReferralsCount, u.Balance, b.cfg.Referral.PayoutTarget, need)
}

func (b *Bot) referralLink(userID int64) string {
	if b.bot.Me.Username == "" {
		return "—"
	}
	return "https://t.me/" + b.bot.Me.Username + "?start=" + strconv.FormatInt(userID, 10)
}

func (b *Bot) subKeyboard() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(b.gate.Channels())+1)
	for _, ch := range b.gate.Channels() {
		rows = append(rows, markup.Row(markup.URL("Подписаться: "+ch.String(), ch.JoinURL())))
	}
	rows = append(rows, markup.Row(markup.Data(btnCheckSub.Text, btnCheckSub.Unique)))
	markup.Inline(rows...)
	return markup
}

// parseStartPayload extracts the referrer id from a /start deep link. Only
// bare numeric payloads count; anything else is not a claim.
func parseStartPayload(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
