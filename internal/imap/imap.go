package imap

import (
	"time"
)

// Client is a read-only IMAP source of raw RFC 822 messages.
type Client interface {
	Connect(server string) error
	Login(user, password string) error
	SelectMailbox(name string) error
	// ListUIDs returns the UIDs of messages received within since; zero lists the whole mailbox.
	ListUIDs(since time.Duration) ([]uint32, error)
	// FetchRaw returns the full message without setting the \Seen flag.
	FetchRaw(uid uint32) ([]byte, error)
	Close() error
}
