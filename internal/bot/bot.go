package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/makt28/beacon/internal/monitor"
	"github.com/makt28/beacon/internal/notify"
)

// command is the chat trigger for a manual check.
const command = "!server"

// checkTimeout bounds a manual check end to end, probe and reply included.
const checkTimeout = 30 * time.Second

// Checker runs one full probe-observe-announce check.
type Checker interface {
	Check(ctx context.Context) (monitor.Status, *notify.Event)
}

// Reporter posts a current-status report to a channel.
type Reporter interface {
	Report(ctx context.Context, channelID string, event notify.Event) error
}

// Bot wires the manual !server command to the check path. A manual check
// feeds the engine exactly like a scheduled tick; the reply always shows
// the raw current status, whether or not an announcement fired.
type Bot struct {
	checker  Checker
	reporter Reporter
}

func New(checker Checker, reporter Reporter) *Bot {
	return &Bot{checker: checker, reporter: reporter}
}

// Attach registers the bot's handlers and gateway intents on the session.
// Call it before the session is opened.
func (b *Bot) Attach(s *discordgo.Session) {
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	slog.Info("logged in", "user", r.User.Username, "id", r.User.ID)
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	fields := strings.Fields(m.Content)
	if len(fields) == 0 || fields[0] != command {
		return
	}

	slog.Debug("manual status check requested", "user", m.Author.ID, "channel", m.ChannelID)

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	st, _ := b.checker.Check(ctx)
	if err := b.reporter.Report(ctx, m.ChannelID, st.Event()); err != nil {
		slog.Error("status reply failed", "channel", m.ChannelID, "error", err)
	}
}
