package gogram

import (
	"crypto/sha1" //nolint:gosec // хэш ключа авторизации MTProto определён через SHA1
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/amarnathcjd/gogram/telegram"
	"github.com/gotd/td/tgerr"

	"telegram-bridge/internal/bridge"
	"telegram-bridge/internal/infra/storage"
	"telegram-bridge/internal/tgutil"
)

// native — реализация nativeAPI на *telegram.Client.
type native struct {
	cl *telegram.Client
}

var _ nativeAPI = (*native)(nil)

func newNative(opts bridge.ClientOpts) (*native, error) {
	cfg, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}
	if !opts.InMemory {
		if err := storage.EnsureDirPath(opts.SessionsDir); err != nil {
			return nil, fmt.Errorf("sessions dir: %w", err)
		}
	}

	cl, err := telegram.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("new gogram client: %w", err)
	}
	if rec := opts.Session; rec != nil {
		if _, err := cl.ImportRawSession(rec.AuthKey, authKeyHash(rec.AuthKey), rec.Addr(), int32(opts.APIID)); err != nil { //nolint:gosec
			return nil, fmt.Errorf("import session: %w", err)
		}
	}
	return &native{cl: cl}, nil
}

// clientConfig собирает конфигурацию gogram из опций клиента.
func clientConfig(opts bridge.ClientOpts) (telegram.ClientConfig, error) {
	cfg := telegram.ClientConfig{
		AppID:         int32(opts.APIID), //nolint:gosec // api_id укладывается в int32
		AppHash:       opts.APIHash,
		MemorySession: opts.InMemory,
		NoUpdates:     !opts.ReceiveUpdates,
		TestMode:      opts.TestMode,
		LogLevel:      telegram.LogError,
		DeviceConfig: telegram.DeviceConfig{
			DeviceModel:   opts.Device.DeviceModel,
			SystemVersion: opts.Device.SystemVersion,
			AppVersion:    opts.Device.AppVersion,
		},
	}
	if !opts.InMemory {
		cfg.Session = filepath.Join(opts.SessionsDir, strconv.Itoa(opts.APIID)+".gogram.session")
	}
	if opts.Session != nil {
		cfg.DataCenter = opts.Session.DCID
	}
	if opts.Proxy != nil {
		p, err := url.Parse(opts.Proxy.URL())
		if err != nil {
			return telegram.ClientConfig{}, fmt.Errorf("proxy: %w", err)
		}
		cfg.Proxy = p
	}
	return cfg, nil
}

// authKeyHash — 8 младших байт SHA1 ключа, в таком виде gogram хранит его хэш.
func authKeyHash(key []byte) []byte {
	sum := sha1.Sum(key) //nolint:gosec
	return sum[12:20]
}

var (
	rpcTypeRe = regexp.MustCompile(`\[([A-Z0-9_]+)\]`)
	rpcCodeRe = regexp.MustCompile(`code (\d+)`)
)

// rpcError переводит текстовую ошибку RPC gogram в *tgerr.Error, чтобы
// классификация ошибок совпадала с gotd.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "not connected") {
		return fmt.Errorf("%w: %s", errNotConnected, msg)
	}
	m := rpcTypeRe.FindStringSubmatch(msg)
	if m == nil {
		return err
	}
	code := 400
	if c := rpcCodeRe.FindStringSubmatch(msg); c != nil {
		code, _ = strconv.Atoi(c[1])
	}
	return tgerr.New(code, m[1])
}

func (n *native) Connect() error { return rpcError(n.cl.Connect()) }

func (n *native) Disconnect() error { return rpcError(n.cl.Disconnect()) }

func (n *native) IsAuthorized() (bool, error) {
	ok, err := n.cl.IsAuthorized()
	return ok, rpcError(err)
}

func (n *native) SendCode(phone string) (string, error) {
	hash, err := n.cl.SendCode(phone)
	return hash, rpcError(err)
}

func (n *native) SignIn(phone, hash, code string) error {
	res, err := n.cl.AuthSignIn(phone, hash, code, nil)
	if err != nil {
		return rpcError(err)
	}
	if _, ok := res.(*telegram.AuthAuthorizationSignUpRequired); ok {
		return errSignUpRequired
	}
	return nil
}

func (n *native) CheckPassword(password string) error {
	acc, err := n.cl.AccountGetPassword()
	if err != nil {
		return rpcError(err)
	}
	srp, err := telegram.GetInputCheckPassword(password, acc)
	if err != nil {
		return fmt.Errorf("compute srp: %w", err)
	}
	_, err = n.cl.AuthCheckPassword(srp)
	return rpcError(err)
}

func (n *native) Self() (int64, bool, error) {
	me, err := n.cl.GetMe()
	if err != nil {
		return 0, false, rpcError(err)
	}
	return me.ID, me.Bot, nil
}

func (n *native) ExportAuth() ([]byte, string, int, error) {
	raw := n.cl.ExportRawSession()
	if raw == nil || len(raw.Key) == 0 {
		return nil, "", 0, errors.New("client has no auth key")
	}
	return raw.Key, raw.Hostname, int(raw.AppID), nil
}

func (n *native) OnMessage(h func(*Message)) {
	n.cl.AddMessageHandler(telegram.OnNewMessage, func(m *telegram.NewMessage) error {
		h(convertMessage(m))
		return nil
	})
}

func (n *native) SendMessage(chatID int64, text string, replyTo int, noPreview bool) error {
	_, err := n.cl.SendMessage(chatID, text, &telegram.SendOptions{
		ReplyID:     int32(replyTo), //nolint:gosec // id сообщений Telegram 32-битные
		LinkPreview: !noPreview,
	})
	return rpcError(err)
}

func (n *native) ReadHistory(chatID int64, maxID int) error {
	peer, err := n.cl.ResolvePeer(chatID)
	if err != nil {
		return rpcError(err)
	}
	if ch, ok := peer.(*telegram.InputPeerChannel); ok {
		_, err = n.cl.ChannelsReadHistory(&telegram.InputChannelObj{
			ChannelID:  ch.ChannelID,
			AccessHash: ch.AccessHash,
		}, int32(maxID)) //nolint:gosec
		return rpcError(err)
	}
	_, err = n.cl.MessagesReadHistory(peer, int32(maxID)) //nolint:gosec
	return rpcError(err)
}

func (n *native) MediaGroup(chatID int64, msgID int) ([]*Message, error) {
	msgs, err := n.cl.GetMediaGroup(chatID, int32(msgID)) //nolint:gosec
	if err != nil {
		return nil, rpcError(err)
	}
	out := make([]*Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, convertMessage(&msgs[i]))
	}
	return out, nil
}

// Download скачивает файл через временный файл: gogram пишет загрузку на диск.
func (n *native) Download(ref bridge.FileRef) ([]byte, error) {
	tmp, err := os.CreateTemp("", "telebridge-media-*")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(path) }()

	if _, err := n.cl.DownloadMedia(mediaFromRef(ref), &telegram.DownloadOptions{FileName: path}); err != nil {
		return nil, rpcError(err)
	}
	return os.ReadFile(path)
}

func mediaFromRef(ref bridge.FileRef) telegram.MessageMedia {
	if ref.Type == bridge.MediaPhoto {
		return &telegram.MessageMediaPhoto{Photo: &telegram.PhotoObj{
			ID:            ref.ID,
			AccessHash:    ref.AccessHash,
			FileReference: ref.FileReference,
			DcID:          int32(ref.DCID), //nolint:gosec
			Sizes: []telegram.PhotoSize{
				&telegram.PhotoSizeObj{Type: ref.ThumbSize, Size: int32(ref.Size)}, //nolint:gosec
			},
		}}
	}
	return &telegram.MessageMediaDocument{Document: &telegram.DocumentObj{
		ID:            ref.ID,
		AccessHash:    ref.AccessHash,
		FileReference: ref.FileReference,
		DcID:          int32(ref.DCID), //nolint:gosec
		Size:          ref.Size,
	}}
}

func (n *native) Peer(id int64) (bridge.Peer, error) {
	kind, raw := tgutil.ParseMarkedID(id)
	switch kind {
	case tgutil.KindChannel:
		ch, err := n.cl.GetChannel(raw)
		if err != nil {
			return bridge.Peer{}, rpcError(err)
		}
		return bridge.Peer{
			Type: bridge.PeerTypeChannel, ID: ch.ID, AccessHash: ch.AccessHash,
			Title: ch.Title, Username: ch.Username, Full: true,
		}, nil
	case tgutil.KindChat:
		chat, err := n.cl.GetChat(raw)
		if err != nil {
			return bridge.Peer{}, rpcError(err)
		}
		return bridge.Peer{Type: bridge.PeerTypeChat, ID: chat.ID, Title: chat.Title, Full: true}, nil
	default:
		u, err := n.cl.GetUser(raw)
		if err != nil {
			return bridge.Peer{}, rpcError(err)
		}
		return bridge.Peer{
			Type: bridge.PeerTypeUser, ID: u.ID, AccessHash: u.AccessHash,
			Title:    strings.TrimSpace(u.FirstName + " " + u.LastName),
			Username: u.Username, Full: true,
		}, nil
	}
}

func (n *native) InputPeer(id int64) (bridge.Peer, error) {
	peer, err := n.cl.ResolvePeer(id)
	if err != nil {
		return bridge.Peer{}, rpcError(err)
	}
	switch v := peer.(type) {
	case *telegram.InputPeerUser:
		return bridge.Peer{Type: bridge.PeerTypeUser, ID: v.UserID, AccessHash: v.AccessHash}, nil
	case *telegram.InputPeerChat:
		return bridge.Peer{Type: bridge.PeerTypeChat, ID: v.ChatID}, nil
	case *telegram.InputPeerChannel:
		return bridge.Peer{Type: bridge.PeerTypeChannel, ID: v.ChannelID, AccessHash: v.AccessHash}, nil
	case *telegram.InputPeerSelf:
		return bridge.Peer{Type: bridge.PeerTypeUser, ID: id}, nil
	default:
		return bridge.Peer{}, fmt.Errorf("unsupported input peer %T", peer)
	}
}
