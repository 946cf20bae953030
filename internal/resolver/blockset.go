package resolver

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Значения по умолчанию для разделяемого набора блокировок.
const (
	DefaultBlockSetSize = 1000
	DefaultBlockTTL     = 3 * time.Minute
)

// BlockSet — общий на процесс набор аккаунтов, временно отказавшихся от
// разрешения чатов. Потокобезопасен; записи истекают сами.
type BlockSet struct {
	lru *expirable.LRU[int64, struct{}]
	ttl time.Duration
}

// NewBlockSet создаёт набор. Неположительные параметры заменяются значениями по умолчанию.
func NewBlockSet(size int, ttl time.Duration) *BlockSet {
	if size <= 0 {
		size = DefaultBlockSetSize
	}
	if ttl <= 0 {
		ttl = DefaultBlockTTL
	}
	return &BlockSet{lru: expirable.NewLRU[int64, struct{}](size, nil, ttl), ttl: ttl}
}

// Block помещает аккаунт в набор на время TTL.
func (b *BlockSet) Block(accountID int64) {
	b.lru.Add(accountID, struct{}{})
}

// Blocked сообщает, заблокирован ли аккаунт прямо сейчас.
func (b *BlockSet) Blocked(accountID int64) bool {
	_, ok := b.lru.Get(accountID)
	return ok
}

// Unblock снимает блокировку досрочно.
func (b *BlockSet) Unblock(accountID int64) {
	b.lru.Remove(accountID)
}

// Len — число действующих блокировок.
func (b *BlockSet) Len() int {
	return b.lru.Len()
}

// TTL — длительность блокировки.
func (b *BlockSet) TTL() time.Duration {
	return b.ttl
}
