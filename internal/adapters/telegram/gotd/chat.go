package gotd

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"telegram-bridge/internal/bridge"
)

// own приводит bridge.Message к сообщению этого бэкенда.
func own(m bridge.Message) (*Message, error) {
	msg, ok := m.(*Message)
	if !ok || msg == nil || msg.msg == nil {
		return nil, bridge.ErrForeignMessage
	}
	return msg, nil
}

func (c *Client) SendMessage(ctx context.Context, target bridge.Message, text string, opts bridge.SendOptions) error {
	m, err := own(target)
	if err != nil {
		return err
	}
	peer, err := c.peers.inputPeer(ctx, m.msg.PeerID, m.ents)
	if err != nil {
		return errors.Wrap(err, "resolve target")
	}
	b := &c.sender.To(peer).Builder
	if opts.Reply {
		b = b.Reply(m.ID())
	}
	if opts.DisableLinkPreview {
		b = b.NoWebpage()
	}
	if _, err := b.Text(ctx, text); err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}

// ReadHistory отмечает чат прочитанным до сообщения включительно.
func (c *Client) ReadHistory(ctx context.Context, target bridge.Message) error {
	m, err := own(target)
	if err != nil {
		return err
	}
	peer, err := c.peers.inputPeer(ctx, m.msg.PeerID, m.ents)
	if err != nil {
		return errors.Wrap(err, "resolve target")
	}
	return readHistory(ctx, c.api, peer, m.ID())
}

type historyAPI interface {
	MessagesReadHistory(ctx context.Context, request *tg.MessagesReadHistoryRequest) (*tg.MessagesAffectedMessages, error)
	ChannelsReadHistory(ctx context.Context, request *tg.ChannelsReadHistoryRequest) (bool, error)
}

func readHistory(ctx context.Context, api historyAPI, peer tg.InputPeerClass, maxID int) error {
	switch p := peer.(type) {
	case *tg.InputPeerChannel:
		if _, err := api.ChannelsReadHistory(ctx, &tg.ChannelsReadHistoryRequest{
			Channel: &tg.InputChannel{ChannelID: p.ChannelID, AccessHash: p.AccessHash},
			MaxID:   maxID,
		}); err != nil {
			return errors.Wrap(err, "channels.readHistory")
		}
	default:
		if _, err := api.MessagesReadHistory(ctx, &tg.MessagesReadHistoryRequest{
			Peer:  p,
			MaxID: maxID,
		}); err != nil {
			return errors.Wrap(err, "messages.readHistory")
		}
	}
	return nil
}

func targetPeer(m *Message, kind bridge.PeerKind) (tg.PeerClass, error) {
	if kind == bridge.PeerSender {
		if p := m.senderPeer(); p != nil {
			return p, nil
		}
		return nil, errors.New("message has no sender")
	}
	return m.msg.PeerID, nil
}

func (c *Client) LookupChat(ctx context.Context, bm bridge.Message, kind bridge.PeerKind) (bridge.Peer, error) {
	m, err := own(bm)
	if err != nil {
		return bridge.Peer{}, err
	}
	target, err := targetPeer(m, kind)
	if err != nil {
		return bridge.Peer{}, err
	}
	p, err := c.peers.resolve(ctx, target)
	if err != nil {
		return bridge.Peer{}, err
	}
	return describe(p)
}

func (c *Client) LookupInputChat(ctx context.Context, bm bridge.Message, kind bridge.PeerKind) (bridge.Peer, error) {
	m, err := own(bm)
	if err != nil {
		return bridge.Peer{}, err
	}
	target, err := targetPeer(m, kind)
	if err != nil {
		return bridge.Peer{}, err
	}
	ip, err := c.peers.inputPeer(ctx, target, m.ents)
	if err != nil {
		return bridge.Peer{}, err
	}
	return describeInput(ip)
}
