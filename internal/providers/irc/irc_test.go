package irc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/providers"
)

func testBot(t *testing.T) *Bot {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	bot, err := New(config.ProviderConfig{
		Name:    "irc-books",
		Server:  "irc.example.com:6667",
		Channel: "#books",
		BotNick: "searchbot",
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create bot: %v", err)
	}
	return bot
}

func TestParseLinePackCommand(t *testing.T) {
	bot := testBot(t)

	hit, ok := bot.parseLine("!shelf Jane Doe - The Great Book.epub ::INFO:: 2.3MB")
	if !ok {
		t.Fatal("Expected a pack line to parse")
	}

	if hit.Title != "Jane Doe - The Great Book.epub" {
		t.Errorf("Title mismatch: %q", hit.Title)
	}
	if hit.URL != "!shelf Jane Doe - The Great Book.epub" {
		t.Errorf("Pack command mismatch: %q", hit.URL)
	}
	if hit.Kind != providers.KindIRC {
		t.Errorf("Expected irc kind, got %s", hit.Kind)
	}
	mb := float64(1 << 20)
	if hit.SizeBytes != int64(2.3*mb) {
		t.Errorf("Size mismatch: %d", hit.SizeBytes)
	}
	if hit.Provider != "irc-books" {
		t.Errorf("Provider mismatch: %s", hit.Provider)
	}
}

func TestParseLineWithoutInfo(t *testing.T) {
	bot := testBot(t)

	hit, ok := bot.parseLine("!shelf The Great Book.mobi")
	if !ok {
		t.Fatal("Expected a pack line without INFO to parse")
	}
	if hit.SizeBytes != 0 {
		t.Errorf("Expected unknown size, got %d", hit.SizeBytes)
	}
}

func TestParseLineSkipsChatter(t *testing.T) {
	bot := testBot(t)

	chatter := []string{
		"Results for your search:",
		"-- end of results --",
		"!onlybot", // Command with no filename
		"",
	}
	for _, line := range chatter {
		if _, ok := bot.parseLine(line); ok {
			t.Errorf("Line %q should not parse as a pack", line)
		}
	}
}

func TestParseInfoSize(t *testing.T) {
	mbf := float64(1 << 20)
	cases := map[string]int64{
		"2.3MB":  int64(2.3 * mbf),
		" 450kb": 450 << 10,
		"1gb":    1 << 30,
		"12":     12,
		"junk":   0,
	}
	for in, want := range cases {
		if got := parseInfoSize(in); got != want {
			t.Errorf("parseInfoSize(%q) = %d, want %d", in, got, want)
		}
	}
}

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

func TestConnectErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want providers.ErrorKind
	}{
		{&net.OpError{Op: "dial", Err: fakeTimeout{}}, providers.ErrTimeout},
		{fmt.Errorf("dial: %w", context.DeadlineExceeded), providers.ErrTimeout},
		{&net.OpError{Op: "dial", Err: errors.New("connection refused")}, providers.ErrProtocol},
		{errors.New("erroneous nickname"), providers.ErrProtocol},
	}
	for _, tc := range cases {
		if got := connectErrorKind(tc.err); got != tc.want {
			t.Errorf("connectErrorKind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestSearchRefusedConnectionIsProtocolError(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	// Nothing listens on port 1, so the dial is turned away immediately
	bot, err := New(config.ProviderConfig{
		Name:    "irc-books",
		Server:  "127.0.0.1:1",
		Channel: "#books",
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create bot: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = bot.Search(ctx, providers.Query{Title: "The Great Book"})
	if err == nil {
		t.Fatal("Expected a connect error")
	}

	var provErr *providers.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected a provider error, got %T: %v", err, err)
	}
	if provErr.Kind != providers.ErrProtocol {
		t.Errorf("Refused connection classified as %s, want %s", provErr.Kind, providers.ErrProtocol)
	}
}

func TestNewRequiresServerAndChannel(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	if _, err := New(config.ProviderConfig{Name: "x", Channel: "#books"}, logger); err == nil {
		t.Error("Expected an error without a server")
	}
	if _, err := New(config.ProviderConfig{Name: "x", Server: "irc.example.com"}, logger); err == nil {
		t.Error("Expected an error without a channel")
	}
}
