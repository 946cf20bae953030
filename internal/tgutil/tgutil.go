// Package tgutil — мелкие помощники над типами gotd.
package tgutil

import "github.com/gotd/td/tg"

// Смещение помеченных id: каналы -100xxxxxxxxxx, группы -xxxx.
const channelMarkOffset int64 = -1_000_000_000_000

// PeerKind — тип пира, восстановленный из помеченного id.
type PeerKind int

const (
	KindUser PeerKind = iota
	KindChat
	KindChannel
)

// GetPeerID нормализует получателя до его числового идентификатора (user/chat/channel).
// Возвращает 0 для неизвестного типа peer.
func GetPeerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}

// MarkedID возвращает id в формате Bot API: пользователь как есть, группа
// со знаком минус, канал с префиксом -100.
func MarkedID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return Mark(KindUser, p.UserID)
	case *tg.PeerChat:
		return Mark(KindChat, p.ChatID)
	case *tg.PeerChannel:
		return Mark(KindChannel, p.ChannelID)
	default:
		return 0
	}
}

// Mark помечает сырой id по типу пира.
func Mark(kind PeerKind, id int64) int64 {
	switch kind {
	case KindChat:
		return -id
	case KindChannel:
		return channelMarkOffset - id
	default:
		return id
	}
}

// ParseMarkedID — обратное преобразование к MarkedID.
func ParseMarkedID(id int64) (PeerKind, int64) {
	switch {
	case id > 0:
		return KindUser, id
	case id <= channelMarkOffset:
		return KindChannel, channelMarkOffset - id
	default:
		return KindChat, -id
	}
}

// PeerFromMarked строит tg.PeerClass из помеченного id.
func PeerFromMarked(id int64) tg.PeerClass {
	kind, raw := ParseMarkedID(id)
	switch kind {
	case KindChannel:
		return &tg.PeerChannel{ChannelID: raw}
	case KindChat:
		return &tg.PeerChat{ChatID: raw}
	default:
		return &tg.PeerUser{UserID: raw}
	}
}
