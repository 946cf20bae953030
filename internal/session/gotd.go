package session

import (
	"context"
	"net"
	"strconv"

	"github.com/go-faster/errors"
	tdsession "github.com/gotd/td/session"
)

// Data переводит запись в session.Data gotd. Адрес DC берётся из записи.
func (r Record) Data() (*tdsession.Data, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.IP == "" {
		var err error
		if r, err = r.withEndpoint(); err != nil {
			return nil, err
		}
	}
	return &tdsession.Data{
		DC:        r.DCID,
		Addr:      r.Addr(),
		AuthKey:   cloneBytes(r.AuthKey),
		AuthKeyID: r.AuthKeyID(),
	}, nil
}

// FromData собирает Record из session.Data gotd. Поля, которых gotd не хранит
// (user_id, is_bot), заполняет вызывающий.
func FromData(data *tdsession.Data, apiID int, testMode bool) (Record, error) {
	if data == nil {
		return Record{}, errors.New("nil session data")
	}
	r := Record{
		DCID:     data.DC,
		APIID:    apiID,
		HasAPIID: apiID != 0,
		TestMode: testMode,
		AuthKey:  cloneBytes(data.AuthKey),
	}
	host, port, err := net.SplitHostPort(data.Addr)
	if err == nil {
		r.IP = host
		r.Port, _ = strconv.Atoi(port)
	} else if r, err = r.withEndpoint(); err != nil {
		return Record{}, err
	}
	return r, r.Validate()
}

// MemoryStorage возвращает хранилище gotd в памяти, уже содержащее эту сессию.
func (r Record) MemoryStorage(ctx context.Context) (*tdsession.StorageMemory, error) {
	data, err := r.Data()
	if err != nil {
		return nil, err
	}
	st := new(tdsession.StorageMemory)
	loader := tdsession.Loader{Storage: st}
	if err := loader.Save(ctx, data); err != nil {
		return nil, errors.Wrap(err, "save session data")
	}
	return st, nil
}

// LoadData читает session.Data из любого хранилища gotd.
func LoadData(ctx context.Context, st tdsession.Storage) (*tdsession.Data, error) {
	loader := tdsession.Loader{Storage: st}
	data, err := loader.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load session data")
	}
	return data, nil
}
