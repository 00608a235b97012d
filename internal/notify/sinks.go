package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gen2brain/beeep"
	"github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"
)

// Desktop raises a local notification.
type Desktop interface {
	Notify(title, body string) error
}

// Relay delivers a text message to one destination, typically a phone
// number or an iMessage address.
type Relay interface {
	Send(ctx context.Context, destination, text string) error
}

// Broadcaster delivers a text message to a fixed audience.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) error
}

// BeeepDesktop uses the platform notification center.
type BeeepDesktop struct {
	Icon string
}

func (d BeeepDesktop) Notify(title, body string) error {
	return beeep.Notify(title, body, d.Icon)
}

// Runner runs an external program and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandRelay shells out once per destination, by default
// `osascript sendMessage.scpt <text> <destination>`.
type CommandRelay struct {
	Bin    string
	Script string
	run    Runner
}

func NewCommandRelay(bin, script string) *CommandRelay {
	return &CommandRelay{Bin: bin, Script: script, run: execRunner}
}

func (r *CommandRelay) Send(ctx context.Context, destination, text string) error {
	args := []string{text, destination}
	if r.Script != "" {
		args = append([]string{r.Script}, args...)
	}
	out, err := r.run(ctx, r.Bin, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("relay %s: %w: %s", r.Bin, err, msg)
		}
		return fmt.Errorf("relay %s: %w", r.Bin, err)
	}
	return nil
}

// TelegramRelay sends every message to each configured chat.
type TelegramRelay struct {
	b       *bot.Bot
	chatIDs []any
}

func NewTelegramRelay(token string, chatIDs []string, opts ...bot.Option) (*TelegramRelay, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(chatIDs) == 0 {
		return nil, errors.New("no telegram chat ids")
	}
	b, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	ids := make([]any, 0, len(chatIDs))
	for _, id := range chatIDs {
		// numeric ids for users and groups, "@name" for channels
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			ids = append(ids, n)
		} else {
			ids = append(ids, id)
		}
	}
	return &TelegramRelay{b: b, chatIDs: ids}, nil
}

func (t *TelegramRelay) Broadcast(ctx context.Context, text string) error {
	// one failing chat must not cancel the others
	var g errgroup.Group
	for _, id := range t.chatIDs {
		g.Go(func() error {
			_, err := t.b.SendMessage(ctx, &bot.SendMessageParams{ChatID: id, Text: text})
			if err != nil {
				return fmt.Errorf("telegram chat %v: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
