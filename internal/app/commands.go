package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"promobot/internal/ledger"
	kit "promobot/internal/transport"
	logx "promobot/pkg/logx"
)

// commandLoop dispatches incoming admin commands until ctx is done.
func (a *App) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			m := up.Message
			if m == nil || !strings.HasPrefix(m.Text, "/") {
				continue
			}
			if !a.isAdmin(m.FromID) {
				continue
			}
			a.handleCommand(ctx, m)
		}
	}
}

func (a *App) isAdmin(userID int64) bool {
	for _, id := range a.admins {
		if id == userID {
			return true
		}
	}
	return false
}

func (a *App) handleCommand(ctx context.Context, m *kit.Message) {
	fields := strings.Fields(m.Text)
	cmd := strings.ToLower(fields[0])
	// strip a possible "@botname" suffix
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/status":
		a.replyStatus(ctx, m.ChatID)
	case "/pausar":
		if err := a.ledger.SetState(ctx, ledger.StatePaused, "1"); err != nil {
			a.reply(ctx, m.ChatID, "Erro ao pausar.")
			return
		}
		a.reply(ctx, m.ChatID, "Postagens automáticas pausadas.")
	case "/retomar":
		if err := a.ledger.SetState(ctx, ledger.StatePaused, "0"); err != nil {
			a.reply(ctx, m.ChatID, "Erro ao retomar.")
			return
		}
		a.reply(ctx, m.ChatID, "Postagens automáticas retomadas.")
	case "/freq":
		a.handleFreq(ctx, m.ChatID, fields[1:])
	case "/postnow":
		if _, ok := a.PostNow(ctx); ok {
			a.reply(ctx, m.ChatID, "Post enviado.")
		} else {
			a.reply(ctx, m.ChatID, "Nenhuma oferta publicada agora (sem estoque/duplicada/erro).")
		}
	}
}

func (a *App) handleFreq(ctx context.Context, chatID int64, args []string) {
	if len(args) != 2 {
		a.reply(ctx, chatID, "Uso: /freq min max")
		return
	}
	mn, err1 := strconv.Atoi(args[0])
	mx, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || mn <= 0 || mx < mn {
		a.reply(ctx, chatID, "Valores inválidos.")
		return
	}
	if err := a.ledger.SetState(ctx, ledger.StateMinPerHour, strconv.Itoa(mn)); err != nil {
		a.reply(ctx, chatID, "Erro ao atualizar frequência.")
		return
	}
	if err := a.ledger.SetState(ctx, ledger.StateMaxPerHour, strconv.Itoa(mx)); err != nil {
		a.reply(ctx, chatID, "Erro ao atualizar frequência.")
		return
	}
	a.reply(ctx, chatID, fmt.Sprintf("Frequência atualizada para %d-%d/h.", mn, mx))
}

func (a *App) replyStatus(ctx context.Context, chatID int64) {
	paused, _ := a.ledger.GetState(ctx, ledger.StatePaused, "0")
	minH, _ := a.ledger.GetState(ctx, ledger.StateMinPerHour, strconv.Itoa(a.rt.Posting.MinPerHour))
	maxH, _ := a.ledger.GetState(ctx, ledger.StateMaxPerHour, strconv.Itoa(a.rt.Posting.MaxPerHour))

	state := "ATIVO"
	if paused == "1" {
		state = "PAUSADO"
	}

	lines := []string{
		"Bot: " + state,
		fmt.Sprintf("Janela: %02d:00-%02d:00 %s",
			a.rt.Posting.WindowStartHour, a.rt.Posting.WindowEndHour, a.rt.Posting.Location),
		fmt.Sprintf("Frequência: %s-%s por hora", minH, maxH),
		"Últimos posts:",
	}

	recent, err := a.ledger.RecentPosts(ctx, 5)
	if err != nil {
		a.log.Warn("recent posts query failed", logx.Err(err))
	}
	for _, r := range recent {
		lines = append(lines, fmt.Sprintf("• %s @ %s (R$ %.2f)",
			r.ProductID, r.PostedAt.In(a.rt.Posting.Location).Format(time.DateTime), r.Price))
	}

	a.reply(ctx, chatID, strings.Join(lines, "\n"))
}

func (a *App) reply(ctx context.Context, chatID int64, text string) {
	if _, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{DisablePreview: true}); err != nil {
		a.log.Warn("command reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
