package bridge

// PeerKind — что именно разрешается: чат сообщения или его отправитель.
type PeerKind int

const (
	PeerChat PeerKind = iota
	PeerSender
)

func (k PeerKind) String() string {
	if k == PeerSender {
		return "sender"
	}
	return "chat"
}

// PeerType — тип разрешённого пира.
type PeerType string

const (
	PeerTypeUser    PeerType = "user"
	PeerTypeChat    PeerType = "chat"
	PeerTypeChannel PeerType = "channel"
)

// Peer — метаданные чата или пользователя. Для «input»-разрешения
// заполнены только Type, ID и AccessHash.
type Peer struct {
	Type       PeerType
	ID         int64
	AccessHash int64
	Title      string
	Username   string
	Full       bool
}
