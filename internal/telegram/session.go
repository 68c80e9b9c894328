package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/medlake/medlake/internal/fetch"
	"github.com/medlake/medlake/internal/logger"
)

// Session is a live authorized connection. It implements fetch.Client and
// the media downloader, translating RPC errors into fetch's error types.
type Session struct {
	api *tg.Client
	dl  *downloader.Downloader
	log logger.Logger
}

func newSession(api *tg.Client, log logger.Logger) *Session {
	return &Session{api: api, dl: downloader.NewDownloader(), log: log}
}

// Resolve looks up a channel by username.
func (s *Session) Resolve(ctx context.Context, identifier string) (fetch.Channel, error) {
	res, err := s.api.ContactsResolveUsername(ctx, identifier)
	if err != nil {
		if isChannelMissing(err) {
			return fetch.Channel{}, &fetch.ChannelNotFoundError{Identifier: identifier}
		}
		return fetch.Channel{}, mapRPC(err)
	}

	for _, chat := range res.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return fetch.Channel{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Title:      ch.Title,
				Username:   ch.Username,
			}, nil
		}
	}
	return fetch.Channel{}, &fetch.ChannelNotFoundError{Identifier: identifier}
}

// History returns up to limit messages older than offsetID, newest-first.
func (s *Session) History(ctx context.Context, ch fetch.Channel, offsetID, limit int) ([]fetch.RawMessage, error) {
	res, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer: &tg.InputPeerChannel{
			ChannelID:  ch.ID,
			AccessHash: ch.AccessHash,
		},
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		return nil, mapRPC(err)
	}

	modified, ok := res.(tg.ModifiedMessagesMessages)
	if !ok {
		return nil, fmt.Errorf("unexpected history response %T", res)
	}

	var out []fetch.RawMessage
	for _, m := range modified.GetMessages() {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue // service messages carry no content
		}
		out = append(out, convertMessage(msg))
	}
	return out, nil
}

// DownloadPhoto saves the referenced photo to path.
func (s *Session) DownloadPhoto(ctx context.Context, photo *fetch.PhotoRef, path string) error {
	loc := &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     photo.ThumbSize,
	}
	if _, err := s.dl.Download(s.api, loc).ToPath(ctx, path); err != nil {
		return mapRPC(err)
	}
	return nil
}

func convertMessage(msg *tg.Message) fetch.RawMessage {
	raw := fetch.RawMessage{
		ID:   int64(msg.ID),
		Text: msg.Message,
	}
	if msg.Date > 0 {
		raw.Date = time.Unix(int64(msg.Date), 0).UTC()
	}
	if views, ok := msg.GetViews(); ok {
		raw.Views = views
	}
	if forwards, ok := msg.GetForwards(); ok {
		raw.Forwards = forwards
	}
	if media, ok := msg.GetMedia(); ok {
		raw.HasMedia = true
		raw.Photo = photoRef(media)
	}
	return raw
}

// photoRef extracts a downloadable reference from photo media, picking the
// largest available size. Other media kinds yield nil.
func photoRef(media tg.MessageMediaClass) *fetch.PhotoRef {
	mp, ok := media.(*tg.MessageMediaPhoto)
	if !ok {
		return nil
	}
	p, ok := mp.GetPhoto()
	if !ok {
		return nil
	}
	photo, ok := p.(*tg.Photo)
	if !ok || len(photo.Sizes) == 0 {
		return nil
	}

	// Sizes are ordered smallest to largest.
	thumb := photo.Sizes[len(photo.Sizes)-1].GetType()
	return &fetch.PhotoRef{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     thumb,
	}
}
