package readingservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/verbo/internal/account"
	"github.com/starford/verbo/internal/bible"
	"github.com/starford/verbo/internal/chat"
	"github.com/starford/verbo/internal/cipher"
	"github.com/starford/verbo/internal/progress"
	"github.com/starford/verbo/internal/reader"
	"github.com/starford/verbo/internal/remote"
	"github.com/starford/verbo/internal/storage"
	"github.com/starford/verbo/internal/usersync"
)

// Notifier shows a transient message to the user.
type Notifier interface {
	Toast(msg string)
}

// Options are the external collaborators of an assembled Service.
type Options struct {
	Provider  bible.Provider
	Local     *storage.Local
	Store     *remote.Store
	Cipher    cipher.Cipher
	Generator chat.Generator
	// Images illustrates verses; when nil, Generator is used if it can.
	Images    chat.ImageGenerator
	Notify    Notifier
	Observer  reader.Observer
	Reader    reader.Config
	Edition   string
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Assemble wires the session components together and starts loading the
// catalog of the configured edition.
func Assemble(o Options) (*Service, error) {
	switch {
	case o.Provider == nil:
		return nil, errors.New("readingservice: missing bible provider")
	case o.Local == nil:
		return nil, errors.New("readingservice: missing local storage")
	case o.Store == nil:
		return nil, errors.New("readingservice: missing remote store")
	case o.Cipher == nil:
		return nil, errors.New("readingservice: missing cipher")
	case o.Generator == nil:
		return nil, errors.New("readingservice: missing generator")
	case o.Notify == nil:
		return nil, errors.New("readingservice: missing notifier")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Edition == "" {
		o.Edition = bible.DefaultEdition
	}

	session := reader.New(o.Provider, o.Reader, o.Logger, o.Observer)

	var acctOpts []account.Option
	if o.Clock != nil {
		acctOpts = append(acctOpts, account.WithClock(o.Clock))
	}
	acct := account.New(o.Store, o.Logger, acctOpts...)

	var chatOpts []chat.Option
	images := o.Images
	if images == nil {
		images, _ = o.Generator.(chat.ImageGenerator)
	}
	if images != nil {
		chatOpts = append(chatOpts, chat.WithImages(images))
	}
	chatSvc := chat.NewService(o.Generator, session, o.Store, o.Cipher, o.Logger, chatOpts...)

	syncer := usersync.New(usersync.Deps{
		Local:  usersync.NewLocalTier(o.Local),
		Remote: usersync.RemoteTierFactory(o.Store, o.Cipher, o.Logger),
		Chat:   chatSvc,
		View:   session,
		Stats:  acct,
		Notify: o.Notify,
		Logger: o.Logger,
	})

	tracker := progress.NewTracker(o.Local, acct, o.Notify, o.Logger)

	if err := session.SetEdition(o.Edition); err != nil {
		session.Close()
		return nil, err
	}

	return NewService(Deps{
		Reader:   session,
		Account:  acct,
		Sync:     syncer,
		Progress: tracker,
		Chat:     chatSvc,
		Local:    o.Local,
		Logger:   o.Logger,
	}), nil
}

// ReloadGuest re-reads the guest state after an external change to the local
// data directory.
func (s *Service) ReloadGuest() {
	s.d.Sync.ReloadGuest(context.Background())
	s.d.Progress.Reload()
}

// Close stops the reader session.
func (s *Service) Close() {
	s.d.Reader.Close()
}
