package gotd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	bboltdb "github.com/gotd/contrib/bbolt"
	contribstorage "github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"

	"telegram-bridge/internal/bridge"
)

// peerService — peers.Manager в памяти плюс необязательное bbolt-хранилище пиров.
type peerService struct {
	mgr    *peers.Manager
	db     *bbolt.DB
	bucket []byte
	store  contribstorage.PeerStorage
}

func newPeerService(api *tg.Client, db *bbolt.DB, bucket string) *peerService {
	s := &peerService{mgr: (peers.Options{}).Build(api)}
	if db != nil {
		s.db = db
		s.bucket = []byte(bucket)
		s.store = bboltdb.NewPeerStorage(db, s.bucket)
	}
	return s
}

// hook оборачивает обработчик апдейтов: менеджер пиров видит все сущности,
// а при наличии хранилища они ещё и сохраняются.
func (s *peerService) hook(next telegram.UpdateHandler) telegram.UpdateHandler {
	h := s.mgr.UpdateHook(next)
	if s.store != nil {
		h = contribstorage.UpdateHook(h, s.store)
	}
	return h
}

// LoadFromStorage прогружает сохранённые пиры в peers.Manager.
func (s *peerService) LoadFromStorage(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	exists := false
	if err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(s.bucket) != nil
		return nil
	}); err != nil || !exists {
		return err
	}

	iter, err := s.store.Iterate(ctx)
	if err != nil {
		if isJSONUnmarshalError(err) {
			return s.resetBucket()
		}
		return fmt.Errorf("iterate stored peers: %w", err)
	}
	defer func() { _ = iter.Close() }()

	var (
		users []tg.UserClass
		chats []tg.ChatClass
	)
	for iter.Next(ctx) {
		value := iter.Value()
		switch value.Key.Kind {
		case dialogs.User:
			if value.User != nil {
				users = append(users, value.User)
			} else {
				users = append(users, &tg.User{ID: value.Key.ID, AccessHash: value.Key.AccessHash})
			}
		case dialogs.Chat:
			if value.Chat != nil {
				chats = append(chats, value.Chat)
			} else {
				chats = append(chats, &tg.Chat{ID: value.Key.ID})
			}
		case dialogs.Channel:
			if value.Channel != nil {
				chats = append(chats, value.Channel)
			} else {
				chats = append(chats, &tg.Channel{ID: value.Key.ID, AccessHash: value.Key.AccessHash})
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("iterate stored peers: %w", err)
	}
	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	return s.mgr.Apply(ctx, users, chats)
}

// apply передаёт сущности ответа в менеджер пиров.
func (s *peerService) apply(ctx context.Context, users []tg.UserClass, chats []tg.ChatClass) error {
	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	return s.mgr.Apply(ctx, users, chats)
}

// resolve разрешает пир через менеджер (может уйти в сеть).
func (s *peerService) resolve(ctx context.Context, peer tg.PeerClass) (peers.Peer, error) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		u, err := s.mgr.ResolveUserID(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("resolve user %d: %w", p.UserID, err)
		}
		return u, nil
	case *tg.PeerChat:
		c, err := s.mgr.ResolveChatID(ctx, p.ChatID)
		if err != nil {
			return nil, fmt.Errorf("resolve chat %d: %w", p.ChatID, err)
		}
		return c, nil
	case *tg.PeerChannel:
		c, err := s.mgr.ResolveChannelID(ctx, p.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve channel %d: %w", p.ChannelID, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported peer type %T", peer)
	}
}

// inputPeer сначала смотрит в сущности апдейта, затем в менеджер пиров.
func (s *peerService) inputPeer(ctx context.Context, peer tg.PeerClass, ents tg.Entities) (tg.InputPeerClass, error) {
	if ip, ok := inputPeerFromEntities(peer, ents); ok {
		return ip, nil
	}
	p, err := s.resolve(ctx, peer)
	if err != nil {
		return nil, err
	}
	return p.InputPeer(), nil
}

func inputPeerFromEntities(peer tg.PeerClass, ents tg.Entities) (tg.InputPeerClass, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		if u, ok := ents.Users[p.UserID]; ok {
			return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, true
	case *tg.PeerChannel:
		if ch, ok := ents.Channels[p.ChannelID]; ok {
			return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, true
		}
	}
	return nil, false
}

// describeInput переводит input-пир в bridge.Peer без метаданных.
func describeInput(ip tg.InputPeerClass) (bridge.Peer, error) {
	switch v := ip.(type) {
	case *tg.InputPeerUser:
		return bridge.Peer{Type: bridge.PeerTypeUser, ID: v.UserID, AccessHash: v.AccessHash}, nil
	case *tg.InputPeerSelf:
		return bridge.Peer{Type: bridge.PeerTypeUser}, nil
	case *tg.InputPeerChat:
		return bridge.Peer{Type: bridge.PeerTypeChat, ID: v.ChatID}, nil
	case *tg.InputPeerChannel:
		return bridge.Peer{Type: bridge.PeerTypeChannel, ID: v.ChannelID, AccessHash: v.AccessHash}, nil
	default:
		return bridge.Peer{}, fmt.Errorf("unsupported input peer %T", ip)
	}
}

// describe переводит разрешённый пир в bridge.Peer с заголовком и username.
func describe(p peers.Peer) (bridge.Peer, error) {
	out, err := describeInput(p.InputPeer())
	if err != nil {
		return bridge.Peer{}, err
	}
	if out.ID == 0 {
		out.ID = p.ID()
	}
	out.Title = p.VisibleName()
	out.Username, _ = p.Username()
	out.Full = true
	return out, nil
}

func isJSONUnmarshalError(err error) bool {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	return strings.Contains(err.Error(), "json:")
}

func (s *peerService) resetBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
}
