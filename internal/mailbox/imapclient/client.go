// Package imapclient reads the shared customer-service mailbox over IMAP.
package imapclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"raccordement_backend/internal/email"
	"raccordement_backend/internal/mailbox/transport"

	imap "github.com/BrianLeishman/go-imap"
)

// Config holds the IMAP account.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Client opens one IMAP session per call. The underlying dialer is not
// safe for concurrent use, so calls are serialised.
type Client struct {
	cfg  Config
	mu   sync.Mutex
	dial func(cfg Config) (*imap.Dialer, error)
}

func New(cfg Config) *Client {
	imap.Verbose = false
	imap.RetryCount = 1
	return &Client{cfg: cfg, dial: dialTLS}
}

func dialTLS(cfg Config) (*imap.Dialer, error) {
	return imap.New(cfg.Username, cfg.Password, cfg.Host, cfg.Port)
}

func (c *Client) session(ctx context.Context, fn func(d *imap.Dialer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.dial(c.cfg)
	if err != nil {
		return fmt.Errorf("imap: connect %s: %w", c.cfg.Host, err)
	}
	defer func() { _ = d.Close() }()
	return fn(d)
}

func (c *Client) Folders(ctx context.Context) ([]transport.Folder, error) {
	var out []transport.Folder
	err := c.session(ctx, func(d *imap.Dialer) error {
		names, err := d.GetFolders()
		if err != nil {
			return fmt.Errorf("imap: list folders: %w", err)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, transport.Folder{Name: name, Label: FolderLabel(name)})
		}
		return nil
	})
	return out, err
}

// Messages returns the newest limit messages of folder, newest first.
func (c *Client) Messages(ctx context.Context, folder string, limit int) ([]transport.MessageSummary, error) {
	var out []transport.MessageSummary
	err := c.session(ctx, func(d *imap.Dialer) error {
		if err := d.SelectFolder(folder); err != nil {
			return fmt.Errorf("imap: select %s: %w", folder, err)
		}
		uids, err := d.GetUIDs("ALL")
		if err != nil {
			return fmt.Errorf("imap: search %s: %w", folder, err)
		}
		sort.Ints(uids)
		if len(uids) > limit {
			uids = uids[len(uids)-limit:]
		}
		if len(uids) == 0 {
			return nil
		}
		overviews, err := d.GetOverviews(uids...)
		if err != nil {
			return fmt.Errorf("imap: fetch overviews: %w", err)
		}
		for i := len(uids) - 1; i >= 0; i-- {
			if e, ok := overviews[uids[i]]; ok && e != nil {
				out = append(out, summary(e))
			}
		}
		return nil
	})
	return out, err
}

// Message fetches one message with its body. A missing uid yields
// ErrNotFound.
func (c *Client) Message(ctx context.Context, folder string, uid int) (transport.Message, error) {
	var out transport.Message
	err := c.session(ctx, func(d *imap.Dialer) error {
		if err := d.SelectFolder(folder); err != nil {
			return fmt.Errorf("imap: select %s: %w", folder, err)
		}
		emails, err := d.GetEmails(uid)
		if err != nil {
			return fmt.Errorf("imap: fetch %d: %w", uid, err)
		}
		e, ok := emails[uid]
		if !ok || e == nil {
			return ErrNotFound
		}
		out = message(e)
		return nil
	})
	return out, err
}

// ErrNotFound is returned when the uid does not exist in the folder.
var ErrNotFound = errors.New("imap: message not found")

func summary(e *imap.Email) transport.MessageSummary {
	date := e.Sent
	if date.IsZero() {
		date = e.Received
	}
	return transport.MessageSummary{
		UID:            e.UID,
		Subject:        e.Subject,
		From:           addresses(e.From),
		To:             addresses(e.To),
		Date:           date,
		Seen:           hasFlag(e.Flags, `\Seen`),
		Size:           e.Size,
		HasAttachments: len(e.Attachments) > 0,
	}
}

func message(e *imap.Email) transport.Message {
	text := e.Text
	if strings.TrimSpace(text) == "" && e.HTML != "" {
		text = email.PlainText(e.HTML)
	}
	m := transport.Message{
		MessageSummary: summary(e),
		MessageID:      e.MessageID,
		CC:             addresses(e.CC),
		ReplyTo:        addresses(e.ReplyTo),
		Text:           text,
		HTML:           e.HTML,
	}
	for _, a := range e.Attachments {
		m.Attachments = append(m.Attachments, transport.Attachment{Name: a.Name, MIMEType: a.MimeType, Size: len(a.Content)})
	}
	return m
}

func addresses(in imap.EmailAddresses) []transport.Address {
	out := make([]transport.Address, 0, len(in))
	for addr, name := range in {
		out = append(out, transport.Address{Name: name, Email: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

// FolderLabel gives common IMAP folders a French label.
func FolderLabel(name string) string {
	base := name
	if i := strings.LastIndexAny(name, "/."); i >= 0 {
		base = name[i+1:]
	}
	switch strings.ToLower(base) {
	case "inbox":
		return "Boîte de réception"
	case "sent", "sent items", "sent messages", "envoyés":
		return "Envoyés"
	case "drafts", "brouillons":
		return "Brouillons"
	case "trash", "deleted items", "corbeille":
		return "Corbeille"
	case "junk", "spam", "indésirables":
		return "Indésirables"
	case "archive", "archives":
		return "Archives"
	}
	return base
}
