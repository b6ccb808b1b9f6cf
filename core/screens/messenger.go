package screens

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/telegram/sender"
)

// OutMessage is a fully resolved message ready for the transport.
type OutMessage struct {
	Text        string
	ParseMode   tele.ParseMode
	Markup      *tele.ReplyMarkup
	Cover       string
	Attachments tele.Album
	Document    *Document
}

// SentMessage identifies a delivered message.
type SentMessage struct {
	ChatID    int64
	MessageID int
	// PhotoFileID is the file id Telegram assigned to the cover, if any.
	PhotoFileID string
}

// Messenger is the chat protocol boundary used by the render pipeline.
type Messenger interface {
	Send(ctx context.Context, chatID int64, m OutMessage) (SentMessage, error)
	Edit(ctx context.Context, msg SentMessage, m OutMessage) (SentMessage, error)
	RemoveKeyboard(ctx context.Context, msg SentMessage) error
}

// TeleMessenger delivers messages through a telebot API. Sends and edits
// are synchronous because the render pipeline needs the resulting message
// id; keyboard cleanup goes through the dispatcher when one is set.
type TeleMessenger struct {
	api  tele.API
	disp *sender.Dispatcher
}

var _ Messenger = (*TeleMessenger)(nil)

// NewTeleMessenger wraps api, normally the running *tele.Bot. disp may be nil.
func NewTeleMessenger(api tele.API, disp *sender.Dispatcher) *TeleMessenger {
	return &TeleMessenger{api: api, disp: disp}
}

func (m *TeleMessenger) Send(_ context.Context, chatID int64, out OutMessage) (SentMessage, error) {
	to := tele.ChatID(chatID)
	opts := out.options()

	var (
		msg *tele.Message
		err error
	)
	switch {
	case out.Document != nil:
		doc, derr := out.Document.teleDocument(out.Text)
		if derr != nil {
			return SentMessage{}, derr
		}
		msg, err = m.api.Send(to, doc, opts)
	case len(out.Attachments) > 0:
		if _, err = m.api.SendAlbum(to, out.Attachments); err != nil {
			break
		}
		msg, err = m.api.Send(to, out.Text, opts)
	case out.Cover != "":
		msg, err = m.api.Send(to, &tele.Photo{File: coverFile(out.Cover), Caption: out.Text}, opts)
	default:
		msg, err = m.api.Send(to, out.Text, opts)
	}
	if err != nil {
		return SentMessage{}, fmt.Errorf("screens: send to %d: %w", chatID, err)
	}
	return sentFrom(msg, chatID), nil
}

func (m *TeleMessenger) Edit(_ context.Context, prev SentMessage, out OutMessage) (SentMessage, error) {
	stored := storedMessage(prev)
	opts := out.options()

	var (
		msg *tele.Message
		err error
	)
	if out.Cover != "" {
		msg, err = m.api.EditMedia(stored, &tele.Photo{File: coverFile(out.Cover), Caption: out.Text}, opts)
	} else {
		msg, err = m.api.Edit(stored, out.Text, opts)
		if err != nil && strings.Contains(err.Error(), "no text in the message") {
			msg, err = m.api.EditCaption(stored, out.Text, opts)
		}
	}
	if err != nil {
		if isNotModified(err) {
			return prev, nil
		}
		return SentMessage{}, fmt.Errorf("screens: edit %d/%d: %w", prev.ChatID, prev.MessageID, err)
	}
	if msg == nil {
		return prev, nil
	}
	return sentFrom(msg, prev.ChatID), nil
}

func (m *TeleMessenger) RemoveKeyboard(ctx context.Context, msg SentMessage) error {
	run := func() error {
		if _, err := m.api.EditReplyMarkup(storedMessage(msg), nil); err != nil && !isNotModified(err) {
			return fmt.Errorf("screens: remove keyboard %d/%d: %w", msg.ChatID, msg.MessageID, err)
		}
		return nil
	}
	if m.disp == nil {
		return run()
	}
	call := sender.Call{Chat: msg.ChatID, Method: "editMessageReplyMarkup", Do: func(context.Context) error { return run() }}
	if err := m.disp.Enqueue(context.WithoutCancel(ctx), call); err != nil {
		return run()
	}
	return nil
}

func (out OutMessage) options() *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: out.ParseMode}
	if out.Markup != nil {
		opts.ReplyMarkup = out.Markup
	}
	return opts
}

func storedMessage(m SentMessage) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(m.MessageID), ChatID: m.ChatID}
}

func sentFrom(msg *tele.Message, chatID int64) SentMessage {
	if msg == nil {
		return SentMessage{ChatID: chatID}
	}
	out := SentMessage{ChatID: chatID, MessageID: msg.ID}
	if msg.Chat != nil {
		out.ChatID = msg.Chat.ID
	}
	if msg.Photo != nil {
		out.PhotoFileID = msg.Photo.FileID
	}
	return out
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// coverFile maps a cover reference to a telebot file: http(s) URLs are
// fetched by Telegram, existing local paths are uploaded, anything else is
// treated as a file id.
func coverFile(cover string) tele.File {
	if u, err := url.Parse(cover); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return tele.FromURL(cover)
	}
	if isLocalFile(cover) {
		return tele.FromDisk(cover)
	}
	return tele.File{FileID: cover}
}

func isLocalFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func (d *Document) teleDocument(caption string) (*tele.Document, error) {
	switch {
	case d.Path != "":
		name := d.Name
		if name == "" {
			name = filepath.Base(d.Path)
		}
		return &tele.Document{File: tele.FromDisk(d.Path), FileName: name, Caption: caption}, nil
	case len(d.Data) > 0:
		return &tele.Document{File: tele.FromReader(bytes.NewReader(d.Data)), FileName: d.Name, Caption: caption}, nil
	default:
		return nil, ErrScreenDocumentDataIsEmpty
	}
}
