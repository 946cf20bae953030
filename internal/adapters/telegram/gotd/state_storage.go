package gotd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/updates"

	"telegram-bridge/internal/infra/logger"
	"telegram-bridge/internal/infra/storage"
)

var errStateNotFound = errors.New("internal state not found")

// jsonStateStorage — updates.StateStorage в памяти с необязательной записью в JSON-файл.
// При пустом path состояние живёт только в памяти (клиенты без диска).
//
// Инвариант: SetState(u, s) сбрасывает channels[u].
type jsonStateStorage struct {
	path string

	mux      sync.Mutex
	loaded   bool
	states   map[int64]updates.State
	channels map[int64]map[int64]int
}

type persistedState struct {
	States   map[int64]updates.State `json:"states"`
	Channels map[int64]map[int64]int `json:"channels"`
}

var _ updates.StateStorage = (*jsonStateStorage)(nil)

func newJSONStateStorage(path string) *jsonStateStorage {
	return &jsonStateStorage{
		path:     path,
		states:   map[int64]updates.State{},
		channels: map[int64]map[int64]int{},
	}
}

// readStateFile читает файл состояния; отсутствующий, пустой или битый файл даёт пустое состояние.
func readStateFile(path string) (persistedState, error) {
	empty := persistedState{States: map[int64]updates.State{}, Channels: map[int64]map[int64]int{}}
	clean := filepath.Clean(path)
	if err := storage.EnsureDir(clean); err != nil {
		return empty, err
	}
	raw, err := os.ReadFile(clean)
	if os.IsNotExist(err) || (err == nil && len(raw) == 0) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("read state: %w", err)
	}

	var p persistedState
	if uErr := json.Unmarshal(raw, &p); uErr != nil {
		logger.Warnf("state storage: failed to decode %s: %v; starting empty", clean, uErr)
		return empty, nil
	}
	if p.States == nil {
		p.States = empty.States
	}
	if p.Channels == nil {
		p.Channels = empty.Channels
	}
	return p, nil
}

// load вызывается под mux.
func (f *jsonStateStorage) load() error {
	if f.loaded || f.path == "" {
		f.loaded = true
		return nil
	}
	p, err := readStateFile(f.path)
	if err != nil {
		return err
	}
	f.states = p.States
	f.channels = p.Channels
	f.loaded = true
	return nil
}

func (f *jsonStateStorage) persist() error {
	if f.path == "" {
		return nil
	}
	enc, err := json.MarshalIndent(persistedState{States: f.states, Channels: f.channels}, "", "  ")
	if err != nil {
		return err
	}
	return storage.AtomicWriteFile(f.path, enc)
}

// update загружает состояние, применяет fn и сохраняет результат.
func (f *jsonStateStorage) update(fn func() error) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	if err := f.load(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return f.persist()
}

func (f *jsonStateStorage) GetState(_ context.Context, userID int64) (updates.State, bool, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if err := f.load(); err != nil {
		return updates.State{}, false, err
	}
	st, ok := f.states[userID]
	return st, ok, nil
}

func (f *jsonStateStorage) SetState(_ context.Context, userID int64, state updates.State) error {
	return f.update(func() error {
		f.states[userID] = state
		f.channels[userID] = map[int64]int{}
		return nil
	})
}

func (f *jsonStateStorage) modify(userID int64, fn func(*updates.State)) error {
	return f.update(func() error {
		st, ok := f.states[userID]
		if !ok {
			return errStateNotFound
		}
		fn(&st)
		f.states[userID] = st
		return nil
	})
}

func (f *jsonStateStorage) SetPts(_ context.Context, userID int64, pts int) error {
	return f.modify(userID, func(s *updates.State) { s.Pts = pts })
}

func (f *jsonStateStorage) SetQts(_ context.Context, userID int64, qts int) error {
	return f.modify(userID, func(s *updates.State) { s.Qts = qts })
}

func (f *jsonStateStorage) SetDate(_ context.Context, userID int64, date int) error {
	return f.modify(userID, func(s *updates.State) { s.Date = date })
}

func (f *jsonStateStorage) SetSeq(_ context.Context, userID int64, seq int) error {
	return f.modify(userID, func(s *updates.State) { s.Seq = seq })
}

func (f *jsonStateStorage) SetDateSeq(_ context.Context, userID int64, date, seq int) error {
	return f.modify(userID, func(s *updates.State) {
		s.Date = date
		s.Seq = seq
	})
}

func (f *jsonStateStorage) SetChannelPts(_ context.Context, userID, channelID int64, pts int) error {
	return f.update(func() error {
		chans, ok := f.channels[userID]
		if !ok {
			return errors.New("user internal state does not exist")
		}
		chans[channelID] = pts
		return nil
	})
}

func (f *jsonStateStorage) GetChannelPts(_ context.Context, userID, channelID int64) (int, bool, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if err := f.load(); err != nil {
		return 0, false, err
	}
	chans, ok := f.channels[userID]
	if !ok {
		return 0, false, nil
	}
	pts, ok := chans[channelID]
	return pts, ok, nil
}

func (f *jsonStateStorage) ForEachChannels(
	ctx context.Context,
	userID int64,
	fn func(ctx context.Context, channelID int64, pts int) error,
) error {
	f.mux.Lock()
	if err := f.load(); err != nil {
		f.mux.Unlock()
		return err
	}
	chans, ok := f.channels[userID]
	snapshot := make(map[int64]int, len(chans))
	for id, pts := range chans {
		snapshot[id] = pts
	}
	f.mux.Unlock()
	if !ok {
		return errors.New("channels map does not exist")
	}
	for id, pts := range snapshot {
		if err := fn(ctx, id, pts); err != nil {
			return err
		}
	}
	return nil
}
