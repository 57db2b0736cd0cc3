package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Style selects how messages are rendered.
type Style string

const (
	StylePlain Style = "plain"
	StyleEmbed Style = "embed"
)

// Embed accent colors for online and offline announcements.
const (
	colorOnline  = 0x2ECC71
	colorOffline = 0xE74C3C
)

// deliveryTimeout bounds a single message delivery.
const deliveryTimeout = 10 * time.Second

// Sender is the slice of the discordgo session the notifier uses.
type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordOptions configures a Discord notifier.
type DiscordOptions struct {
	// ChannelID is the channel announcements are posted to.
	ChannelID string
	Style     Style

	// Host and Port identify the polled server in rendered messages.
	Host string
	Port uint16

	// StableThreshold and RateLimit are shown in the embed footer so readers
	// can tell how damped the announcements are.
	StableThreshold int
	RateLimit       time.Duration
}

// Discord posts announcements and status reports to Discord channels.
type Discord struct {
	session   Sender
	channelID string
	style     Style
	host      string
	port      uint16
	threshold int
	rateLimit time.Duration
}

// NewDiscord creates a Discord notifier that announces to opts.ChannelID.
func NewDiscord(session Sender, opts DiscordOptions) (*Discord, error) {
	if session == nil {
		return nil, errors.New("discord: session is required")
	}
	if opts.ChannelID == "" {
		return nil, errors.New("discord: channel_id is required")
	}
	style := opts.Style
	if style == "" {
		style = StyleEmbed
	}
	return &Discord{
		session:   session,
		channelID: opts.ChannelID,
		style:     style,
		host:      opts.Host,
		port:      opts.Port,
		threshold: opts.StableThreshold,
		rateLimit: opts.RateLimit,
	}, nil
}

// Announce posts a state change announcement to the configured channel.
func (d *Discord) Announce(ctx context.Context, event Event) error {
	if err := d.send(ctx, d.channelID, d.render(event, true)); err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	return nil
}

// Report posts the current status to the given channel. Unlike Announce it
// speaks in the present tense: it describes the latest observation rather
// than a transition.
func (d *Discord) Report(ctx context.Context, channelID string, event Event) error {
	if err := d.send(ctx, channelID, d.render(event, false)); err != nil {
		return fmt.Errorf("send status report: %w", err)
	}
	return nil
}

func (d *Discord) send(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	_, err := d.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		var rest *discordgo.RESTError
		if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
			return fmt.Errorf("discord: missing permission to post in channel %s: %w", channelID, err)
		}
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *Discord) render(event Event, transition bool) *discordgo.MessageSend {
	if d.style == StyleEmbed {
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{d.embed(event, transition)}}
	}
	return &discordgo.MessageSend{Content: d.plainText(event, transition)}
}

func (d *Discord) embed(event Event, transition bool) *discordgo.MessageEmbed {
	color := colorOffline
	if event.Online {
		color = colorOnline
	}
	e := &discordgo.MessageEmbed{
		Title:     embedTitle(event.Online, transition),
		Color:     color,
		Timestamp: event.At.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Debounce: %d checks • RateLimit: %ds", d.threshold, int(d.rateLimit.Seconds())),
		},
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Host", Value: d.address(), Inline: true},
		{Name: "Edition", Value: editionLabel(event.Edition), Inline: true},
		{Name: "Checked", Value: timestampUTC(event.At)},
	}
	if event.Online {
		if players := playerCount(event); players != "" {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Players", Value: players, Inline: true})
		}
		if event.Version != "" {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Version", Value: event.Version, Inline: true})
		}
		if event.Latency > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   "Ping (ms)",
				Value:  strconv.FormatInt(event.Latency.Milliseconds(), 10),
				Inline: true,
			})
		}
		if event.MOTD != "" {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "MOTD", Value: event.MOTD})
		}
	} else if event.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Error", Value: event.Reason})
	}
	e.Fields = fields
	return e
}

func (d *Discord) plainText(event Event, transition bool) string {
	var b strings.Builder
	line := statusLine(event.Online, transition)
	if transition {
		line = "**" + line + "**"
	}
	if event.Online {
		b.WriteString("🟢 " + line)
		if event.Edition != "" {
			fmt.Fprintf(&b, " (%s)", event.Edition)
		}
	} else {
		b.WriteString("🔴 " + line)
	}

	fmt.Fprintf(&b, "\nHost: %s", d.address())
	fmt.Fprintf(&b, "\nTime: %s", timestampUTC(event.At))
	if event.Online {
		if players := playerCount(event); players != "" {
			fmt.Fprintf(&b, "\nPlayers: %s", players)
		}
		if event.MOTD != "" {
			fmt.Fprintf(&b, "\nMOTD: %s", event.MOTD)
		}
	} else if event.Reason != "" {
		fmt.Fprintf(&b, "\nError: %s", event.Reason)
	}
	return b.String()
}

func (d *Discord) address() string {
	return net.JoinHostPort(d.host, strconv.Itoa(int(d.port)))
}

func statusLine(online, transition bool) string {
	switch {
	case online && transition:
		return "Server is now ONLINE"
	case online:
		return "Server is ONLINE"
	case transition:
		return "Server is now OFFLINE"
	default:
		return "Server is OFFLINE"
	}
}

func embedTitle(online, transition bool) string {
	if online {
		return statusLine(online, transition) + " ✅"
	}
	return statusLine(online, transition) + " ❌"
}

func editionLabel(edition string) string {
	if edition == "" {
		return "unknown"
	}
	return edition
}

func playerCount(event Event) string {
	if event.Players == nil {
		return ""
	}
	if event.MaxPlayers != nil {
		return fmt.Sprintf("%d/%d", *event.Players, *event.MaxPlayers)
	}
	return strconv.Itoa(*event.Players)
}

func timestampUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}
