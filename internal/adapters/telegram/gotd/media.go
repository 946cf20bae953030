package gotd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/tgutil"
)

// messagesAPI — RPC для выборки сообщений по id.
type messagesAPI interface {
	MessagesGetMessages(ctx context.Context, id []tg.InputMessageClass) (tg.MessagesMessagesClass, error)
	ChannelsGetMessages(ctx context.Context, request *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error)
}

// fetchMessages получает сообщения по id. Удалённые и служебные сообщения
// приходят как nil на своих местах.
func fetchMessages(
	ctx context.Context,
	api messagesAPI,
	peer tg.InputPeerClass,
	ids []int,
	base tg.Entities,
) ([]bridge.Message, error) {
	req := make([]tg.InputMessageClass, 0, len(ids))
	for _, id := range ids {
		req = append(req, &tg.InputMessageID{ID: id})
	}

	var (
		res tg.MessagesMessagesClass
		err error
	)
	if ch, ok := peer.(*tg.InputPeerChannel); ok {
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
			ID:      req,
		})
	} else {
		res, err = api.MessagesGetMessages(ctx, req)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get messages")
	}
	mod, ok := res.AsModified()
	if !ok {
		return nil, fmt.Errorf("unexpected messages result %T", res)
	}

	ents := mergeEntities(base, mod.GetUsers(), mod.GetChats())
	out := make([]bridge.Message, 0, len(mod.GetMessages()))
	for _, raw := range mod.GetMessages() {
		if msg, ok := raw.(*tg.Message); ok {
			out = append(out, NewMessage(msg, ents))
		} else {
			out = append(out, nil)
		}
	}
	return out, nil
}

func mergeEntities(base tg.Entities, users []tg.UserClass, chats []tg.ChatClass) tg.Entities {
	ents := tg.Entities{
		Users:    make(map[int64]*tg.User, len(base.Users)+len(users)),
		Chats:    make(map[int64]*tg.Chat, len(base.Chats)),
		Channels: make(map[int64]*tg.Channel, len(base.Channels)),
	}
	for id, u := range base.Users {
		ents.Users[id] = u
	}
	for id, c := range base.Chats {
		ents.Chats[id] = c
	}
	for id, c := range base.Channels {
		ents.Channels[id] = c
	}
	for _, raw := range users {
		if u, ok := raw.(*tg.User); ok {
			ents.Users[u.ID] = u
		}
	}
	for _, raw := range chats {
		switch c := raw.(type) {
		case *tg.Chat:
			ents.Chats[c.ID] = c
		case *tg.Channel:
			ents.Channels[c.ID] = c
		}
	}
	return ents
}

// groupWindow выбирает альбом якоря среди окна ±9 сообщений.
func groupWindow(ctx context.Context, api messagesAPI, peer tg.InputPeerClass, anchor *Message) ([]bridge.Message, error) {
	ids, err := bridge.WindowIDs(anchor.ID())
	if err != nil {
		return nil, err
	}
	fetched, err := fetchMessages(ctx, api, peer, ids, anchor.ents)
	if err != nil {
		return nil, err
	}
	return bridge.SelectGroup(anchor.ID(), fetched)
}

// siblings — мягкий поиск альбома в том же окне для GetMediaGroupMessages.
func siblings(ctx context.Context, api messagesAPI, peer tg.InputPeerClass, anchor *Message) ([]bridge.Message, error) {
	if _, grouped := anchor.MediaGroupID(); !grouped {
		return bridge.SiblingsWithMedia(anchor, nil), nil
	}
	ids, err := bridge.WindowIDs(anchor.ID())
	if err != nil {
		return nil, err
	}
	fetched, err := fetchMessages(ctx, api, peer, ids, anchor.ents)
	if err != nil {
		return nil, err
	}
	return bridge.SiblingsWithMedia(anchor, fetched), nil
}

func (c *Client) GetMediaGroupMessages(ctx context.Context, bm bridge.Message) ([]bridge.Message, error) {
	m, err := own(bm)
	if err != nil {
		return nil, err
	}
	peer, err := c.peers.inputPeer(ctx, m.msg.PeerID, m.ents)
	if err != nil {
		return nil, errors.Wrap(err, "resolve chat")
	}
	return siblings(ctx, c.api, peer, m)
}

// GetMediaGroup скачивает альбом якоря в память. Неподдерживаемые типы и
// элементы крупнее предела пропускаются с предупреждением.
func (c *Client) GetMediaGroup(ctx context.Context, bm bridge.Message) ([]bridge.InputMedia, error) {
	m, err := own(bm)
	if err != nil {
		return nil, err
	}
	if m.ID() <= 0 {
		return nil, bridge.ErrInvalidAnchor
	}
	peer, err := c.peers.inputPeer(ctx, m.msg.PeerID, m.ents)
	if err != nil {
		return nil, errors.Wrap(err, "resolve chat")
	}
	group, err := groupWindow(ctx, c.api, peer, m)
	if err != nil {
		return nil, err
	}

	out := make([]bridge.InputMedia, 0, len(group))
	for _, item := range group {
		kind, ok := bridge.InputKindFor(item.MediaType())
		if !ok {
			c.log.Warn("skip unsupported album item",
				zap.Int("msg_id", item.ID()), zap.Stringer("type", item.MediaType()))
			continue
		}
		if size, ok := item.MediaSize(); ok && size > c.opts.MaxMediaBytes {
			c.log.Warn("skip oversized album item",
				zap.Int("msg_id", item.ID()), zap.Int64("size", size))
			continue
		}
		data, err := c.DownloadMediaFromMessage(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("download album item %d: %w", item.ID(), err)
		}
		out = append(out, bridge.InputMedia{
			Kind:     kind,
			Data:     data,
			FileName: fileNameFor(item, kind),
			Caption:  item.Text(),
		})
	}
	return out, nil
}

func fileNameFor(m bridge.Message, kind bridge.InputKind) string {
	if name := m.FileName(); name != "" {
		return name
	}
	if kind == bridge.InputPhoto {
		return "photo.jpg"
	}
	return fmt.Sprintf("file_%d", m.ID())
}

func (c *Client) DownloadMediaFromMessage(ctx context.Context, bm bridge.Message) ([]byte, error) {
	ref, ok := bm.FileRef()
	if !ok {
		return nil, bridge.ErrNoMedia
	}
	return c.DownloadMedia(ctx, ref)
}

// DownloadMedia скачивает файл по ссылке. Протухший file_reference обновляется
// перечитыванием исходного сообщения.
func (c *Client) DownloadMedia(ctx context.Context, ref bridge.FileRef) ([]byte, error) {
	if ref.Backend != bridge.BackendGotd {
		return nil, bridge.ErrForeignFileRef
	}
	data, err := c.download(ctx, ref)
	if err == nil || !tgerr.Is(err, "FILE_REFERENCE_EXPIRED", "FILE_REFERENCE_INVALID") {
		return data, err
	}
	fresh, rErr := c.refreshRef(ctx, ref)
	if rErr != nil {
		return nil, fmt.Errorf("%w: %w", bridge.ErrFileRefExpired, rErr)
	}
	return c.download(ctx, fresh)
}

func (c *Client) download(ctx context.Context, ref bridge.FileRef) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.dl.Download(c.api, fileLocation(ref)).Stream(ctx, &buf); err != nil {
		return nil, errors.Wrap(err, "download")
	}
	return buf.Bytes(), nil
}

func (c *Client) refreshRef(ctx context.Context, ref bridge.FileRef) (bridge.FileRef, error) {
	if ref.ChatID == 0 || ref.MessageID == 0 {
		return bridge.FileRef{}, errors.New("file ref has no source message")
	}
	peer, err := c.peers.inputPeer(ctx, tgutil.PeerFromMarked(ref.ChatID), tg.Entities{})
	if err != nil {
		return bridge.FileRef{}, err
	}
	msgs, err := fetchMessages(ctx, c.api, peer, []int{ref.MessageID}, tg.Entities{})
	if err != nil {
		return bridge.FileRef{}, err
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return bridge.FileRef{}, errors.New("source message is gone")
	}
	fresh, ok := msgs[0].FileRef()
	if !ok {
		return bridge.FileRef{}, bridge.ErrNoMedia
	}
	return fresh, nil
}

func fileLocation(ref bridge.FileRef) tg.InputFileLocationClass {
	if ref.Type == bridge.MediaPhoto {
		return &tg.InputPhotoFileLocation{
			ID:            ref.ID,
			AccessHash:    ref.AccessHash,
			FileReference: ref.FileReference,
			ThumbSize:     ref.ThumbSize,
		}
	}
	return &tg.InputDocumentFileLocation{
		ID:            ref.ID,
		AccessHash:    ref.AccessHash,
		FileReference: ref.FileReference,
	}
}
