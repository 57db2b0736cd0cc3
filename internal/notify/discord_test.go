package notify

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	channelID string
	sent      []*discordgo.MessageSend
	err       error
}

func (f *fakeSender) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channelID = channelID
	f.sent = append(f.sent, data)
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{}, nil
}

func newTestDiscord(t *testing.T, style Style, sender *fakeSender) *Discord {
	t.Helper()
	d, err := NewDiscord(sender, DiscordOptions{
		ChannelID:       "123456789",
		Style:           style,
		Host:            "play.example.com",
		Port:            25565,
		StableThreshold: 2,
		RateLimit:       5 * time.Minute,
	})
	require.NoError(t, err)
	return d
}

func onlineEvent() Event {
	players, maxPlayers := 3, 20
	return Event{
		Online:     true,
		At:         time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
		Edition:    "java",
		Version:    "1.21.1",
		MOTD:       "A Minecraft Server",
		Players:    &players,
		MaxPlayers: &maxPlayers,
		Latency:    42 * time.Millisecond,
	}
}

func fieldMap(embed *discordgo.MessageEmbed) map[string]string {
	m := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		m[f.Name] = f.Value
	}
	return m
}

func TestAnnounceEmbedOnline(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDiscord(t, StyleEmbed, sender)

	require.NoError(t, d.Announce(context.Background(), onlineEvent()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "123456789", sender.channelID, "announcements go to the configured channel")

	require.Len(t, sender.sent[0].Embeds, 1)
	embed := sender.sent[0].Embeds[0]
	assert.Equal(t, "Server is now ONLINE ✅", embed.Title)
	assert.Equal(t, 0x2ECC71, embed.Color)
	assert.Equal(t, "Debounce: 2 checks • RateLimit: 300s", embed.Footer.Text)
	assert.Equal(t, "2025-03-01T12:00:00Z", embed.Timestamp)

	fields := fieldMap(embed)
	assert.Equal(t, "play.example.com:25565", fields["Host"])
	assert.Equal(t, "java", fields["Edition"])
	assert.Equal(t, "3/20", fields["Players"])
	assert.Equal(t, "1.21.1", fields["Version"])
	assert.Equal(t, "A Minecraft Server", fields["MOTD"])
	assert.Equal(t, "42", fields["Ping (ms)"])
	assert.Equal(t, "2025-03-01 12:00:00 UTC", fields["Checked"])
}

func TestAnnounceEmbedOffline(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDiscord(t, StyleEmbed, sender)

	event := Event{Online: false, At: time.Now(), Reason: "java: connection refused"}
	require.NoError(t, d.Announce(context.Background(), event))

	embed := sender.sent[0].Embeds[0]
	assert.Equal(t, "Server is now OFFLINE ❌", embed.Title)
	assert.Equal(t, 0xE74C3C, embed.Color)

	fields := fieldMap(embed)
	assert.Equal(t, "java: connection refused", fields["Error"])
	assert.Equal(t, "unknown", fields["Edition"])
	assert.NotContains(t, fields, "Players")
	assert.NotContains(t, fields, "MOTD")
}

func TestAnnouncePlainText(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDiscord(t, StylePlain, sender)

	require.NoError(t, d.Announce(context.Background(), onlineEvent()))
	require.Len(t, sender.sent, 1)

	content := sender.sent[0].Content
	assert.True(t, strings.HasPrefix(content, "🟢 **Server is now ONLINE** (java)"), content)
	assert.Contains(t, content, "Host: play.example.com:25565")
	assert.Contains(t, content, "Time: 2025-03-01 12:00:00 UTC")
	assert.Contains(t, content, "Players: 3/20")
	assert.Contains(t, content, "MOTD: A Minecraft Server")
	assert.Empty(t, sender.sent[0].Embeds)
}

func TestAnnouncePlainTextOffline(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDiscord(t, StylePlain, sender)

	event := Event{Online: false, At: time.Now(), Reason: "timeout"}
	require.NoError(t, d.Announce(context.Background(), event))

	content := sender.sent[0].Content
	assert.True(t, strings.HasPrefix(content, "🔴 **Server is now OFFLINE**"), content)
	assert.Contains(t, content, "Error: timeout")
	assert.NotContains(t, content, "Players:")
}

func TestReportSpeaksPresentTense(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDiscord(t, StylePlain, sender)

	event := Event{Online: false, At: time.Now(), Reason: "timeout"}
	require.NoError(t, d.Report(context.Background(), "987", event))

	assert.Equal(t, "987", sender.channelID, "reports go to the requesting channel")
	content := sender.sent[0].Content
	assert.True(t, strings.HasPrefix(content, "🔴 Server is OFFLINE"), content)
	assert.NotContains(t, content, "now")
}

func TestReportEmbedPresentTense(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDiscord(t, StyleEmbed, sender)

	require.NoError(t, d.Report(context.Background(), "987", onlineEvent()))
	assert.Equal(t, "Server is ONLINE ✅", sender.sent[0].Embeds[0].Title)
}

func TestAnnounceWrapsPermissionError(t *testing.T) {
	sender := &fakeSender{err: &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
	}}
	d := newTestDiscord(t, StyleEmbed, sender)

	err := d.Announce(context.Background(), onlineEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing permission")
	assert.Contains(t, err.Error(), "123456789")
}

func TestPlayerCountWithoutMax(t *testing.T) {
	players := 7
	assert.Equal(t, "7", playerCount(Event{Players: &players}))
	assert.Equal(t, "", playerCount(Event{}))
}

func TestNewDiscordValidation(t *testing.T) {
	_, err := NewDiscord(nil, DiscordOptions{ChannelID: "1"})
	assert.Error(t, err)

	_, err = NewDiscord(&fakeSender{}, DiscordOptions{})
	assert.Error(t, err)
}

func TestNewDiscordDefaultsToEmbed(t *testing.T) {
	d, err := NewDiscord(&fakeSender{}, DiscordOptions{ChannelID: "1"})
	require.NoError(t, err)
	assert.Equal(t, StyleEmbed, d.style)
}
