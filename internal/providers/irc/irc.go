package irc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	ircevent "github.com/thoj/go-ircevent"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/providers"
)

// quietPeriod ends result collection once the bot has gone silent for
// this long after its first reply line.
const quietPeriod = 5 * time.Second

// Bot queries an IRC search bot: connect, join the channel, send the
// search command, and collect the reply transcript until the bot goes
// quiet or the context deadline fires. Hits carry the pack command as
// their URL ("!bot filename"), which the blackhole adapter writes out
// as a request file.
type Bot struct {
	name    string
	server  string
	channel string
	botNick string
	nick    string
	logger  *logrus.Logger
}

// New creates an IRC search provider from provider config
func New(cfg config.ProviderConfig, logger *logrus.Logger) (*Bot, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("provider %s: SERVER is required", cfg.Name)
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("provider %s: CHANNEL is required", cfg.Name)
	}

	nick := cfg.Nick
	if nick == "" {
		nick = "bookarr"
	}

	return &Bot{
		name:    cfg.Name,
		server:  cfg.Server,
		channel: cfg.Channel,
		botNick: cfg.BotNick,
		nick:    nick,
		logger:  logger,
	}, nil
}

// Name returns the configured provider name
func (b *Bot) Name() string { return b.name }

// Search runs one request/response transcript against the search bot
func (b *Bot) Search(ctx context.Context, q providers.Query) ([]providers.RawHit, error) {
	conn := ircevent.IRC(b.nick, b.nick)
	conn.QuitMessage = "bye"

	joined := make(chan struct{}, 1)
	lines := make(chan string, 256)

	conn.AddCallback("001", func(e *ircevent.Event) {
		conn.Join(b.channel)
	})
	conn.AddCallback("366", func(e *ircevent.Event) {
		select {
		case joined <- struct{}{}:
		default:
		}
	})

	collect := func(e *ircevent.Event) {
		if b.botNick != "" && !strings.EqualFold(e.Nick, b.botNick) {
			return
		}
		select {
		case lines <- e.Message():
		default: // Transcript buffer full; drop the line
		}
	}
	conn.AddCallback("PRIVMSG", collect)
	conn.AddCallback("NOTICE", collect)

	if err := conn.Connect(b.server); err != nil {
		return nil, providers.NewError(b.name, connectErrorKind(err),
			fmt.Errorf("connect %s: %w", b.server, err))
	}
	go conn.Loop()
	defer conn.Quit()

	select {
	case <-joined:
	case err := <-conn.ErrorChan():
		return nil, providers.NewError(b.name, providers.ErrProtocol, err)
	case <-ctx.Done():
		return nil, providers.NewError(b.name, providers.ErrTimeout,
			fmt.Errorf("joining %s: %w", b.channel, ctx.Err()))
	}

	target := b.botNick
	if target == "" {
		target = b.channel
	}
	conn.Privmsg(target, "@search "+q.Term())

	b.logger.WithFields(logrus.Fields{
		"provider": b.name,
		"target":   target,
		"term":     q.Term(),
	}).Debug("IRC search sent")

	return b.collectHits(ctx, lines), nil
}

// connectErrorKind separates a dial that ran out of time from one the
// server actively turned away. Refused connections and bad registration
// are protocol failures, not timeouts.
func connectErrorKind(err error) providers.ErrorKind {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return providers.ErrTimeout
	}
	return providers.ErrProtocol
}

// collectHits drains the bot's reply lines. A bot that never answers is
// treated as "no results", not a failure; the round context bounds the
// total wait either way.
func (b *Bot) collectHits(ctx context.Context, lines <-chan string) []providers.RawHit {
	var hits []providers.RawHit

	quiet := time.NewTimer(quietPeriod * 4) // Allow the bot extra time for its first line
	defer quiet.Stop()

	for {
		select {
		case line := <-lines:
			if hit, ok := b.parseLine(line); ok {
				hits = append(hits, hit)
			}
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(quietPeriod)
		case <-quiet.C:
			return hits
		case <-ctx.Done():
			return hits
		}
	}
}

// parseLine extracts a pack line of the form
// "!bot Author - Title.epub ::INFO:: 2.3MB". Anything else (headers,
// footers, chatter) is skipped.
func (b *Bot) parseLine(line string) (providers.RawHit, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "!") {
		return providers.RawHit{}, false
	}

	command := line
	var size int64
	if idx := strings.Index(line, "::INFO::"); idx >= 0 {
		command = strings.TrimSpace(line[:idx])
		size = parseInfoSize(line[idx+len("::INFO::"):])
	}

	fields := strings.Fields(command)
	if len(fields) < 2 {
		return providers.RawHit{}, false
	}
	title := strings.Join(fields[1:], " ")

	return providers.RawHit{
		Provider:  b.name,
		Title:     title,
		SizeBytes: size,
		URL:       command,
		Kind:      providers.KindIRC,
	}, true
}

func parseInfoSize(info string) int64 {
	info = strings.TrimSpace(strings.ToLower(info))
	mult := int64(1)
	switch {
	case strings.HasSuffix(info, "gb"):
		mult = 1 << 30
		info = strings.TrimSuffix(info, "gb")
	case strings.HasSuffix(info, "mb"):
		mult = 1 << 20
		info = strings.TrimSuffix(info, "mb")
	case strings.HasSuffix(info, "kb"):
		mult = 1 << 10
		info = strings.TrimSuffix(info, "kb")
	}

	var value float64
	if _, err := fmt.Sscanf(strings.TrimSpace(info), "%f", &value); err != nil {
		return 0
	}
	return int64(value * float64(mult))
}
