package gogram

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"telegram-bridge/internal/bridge"
)

// group запрашивает альбом у gogram напрямую.
func (c *Client) group(ctx context.Context, m *Message) ([]*Message, error) {
	if m.id <= 0 {
		return nil, bridge.ErrInvalidAnchor
	}
	if _, ok := m.MediaGroupID(); !ok {
		return nil, bridge.ErrNoMediaGroup
	}
	var msgs []*Message
	err := c.th.Do(ctx, func() (err error) {
		msgs, err = c.api.MediaGroup(m.chatID, m.id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get media group: %w", err)
	}
	return msgs, nil
}

// GetMediaGroup скачивает альбом в память. Элементы крупнее предела и
// неподдерживаемых типов пропускаются с предупреждением.
func (c *Client) GetMediaGroup(ctx context.Context, bm bridge.Message) ([]bridge.InputMedia, error) {
	m, err := own(bm)
	if err != nil {
		return nil, err
	}
	msgs, err := c.group(ctx, m)
	if err != nil {
		return nil, err
	}

	out := make([]bridge.InputMedia, 0, len(msgs))
	for _, item := range msgs {
		if item == nil || !item.hasMedia {
			continue
		}
		if size, ok := item.MediaSize(); ok && size > c.opts.MaxMediaBytes {
			c.log.Warn("skip oversized album item",
				zap.Int("msg_id", item.id), zap.Int64("size", size), zap.Int64("limit", c.opts.MaxMediaBytes))
			continue
		}
		kind, ok := bridge.InputKindFor(item.MediaType())
		if !ok {
			c.log.Warn("skip unsupported album item",
				zap.Int("msg_id", item.id), zap.Stringer("type", item.MediaType()))
			continue
		}
		data, err := c.DownloadMediaFromMessage(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("download album item %d: %w", item.id, err)
		}
		name := item.fileName
		if name == "" && kind == bridge.InputPhoto {
			name = "photo.jpg"
		}
		out = append(out, bridge.InputMedia{Kind: kind, Data: data, FileName: name, Caption: item.text})
	}
	return out, nil
}

// GetMediaGroupMessages возвращает элементы альбома с вложениями; сообщение
// вне альбома возвращается само (если в нём есть вложение).
func (c *Client) GetMediaGroupMessages(ctx context.Context, bm bridge.Message) ([]bridge.Message, error) {
	m, err := own(bm)
	if err != nil {
		return nil, err
	}
	if _, ok := m.MediaGroupID(); !ok {
		return bridge.SiblingsWithMedia(m, nil), nil
	}
	msgs, err := c.group(ctx, m)
	if err != nil {
		return nil, err
	}
	fetched := make([]bridge.Message, 0, len(msgs))
	for _, item := range msgs {
		if item != nil {
			fetched = append(fetched, item)
		}
	}
	return bridge.SiblingsWithMedia(m, fetched), nil
}

func (c *Client) DownloadMediaFromMessage(ctx context.Context, bm bridge.Message) ([]byte, error) {
	ref, ok := bm.FileRef()
	if !ok {
		return nil, bridge.ErrNoMedia
	}
	return c.DownloadMedia(ctx, ref)
}

// DownloadMedia скачивает файл; последние файлы кэшируются по ссылке.
func (c *Client) DownloadMedia(ctx context.Context, ref bridge.FileRef) ([]byte, error) {
	if ref.Backend != bridge.BackendGogram {
		return nil, bridge.ErrForeignFileRef
	}
	key := ref.String()
	if data, ok := c.media.Get(key); ok {
		return data, nil
	}
	var data []byte
	err := c.th.Do(ctx, func() (err error) {
		data, err = c.api.Download(ref)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	c.media.Add(key, data)
	return data, nil
}
