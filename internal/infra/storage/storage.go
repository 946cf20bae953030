// Package storage — локальные файлы моста: каталоги под bbolt и файлы
// сессий, атомарная запись экспортированных строк сессий.
package storage

import (
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"telegram-bridge/internal/infra/logger"
)

// DefaultFilePerm — права на файлы с секретами (сессии, базы). Только владелец.
const DefaultFilePerm = 0o600

// dirPerm — права на создаваемые каталоги.
const dirPerm = 0o700

// EnsureDir создаёт каталог, в котором лежит файл path.
func EnsureDir(path string) error {
	return EnsureDirPath(filepath.Dir(path))
}

// EnsureDirPath создаёт сам каталог dir. Пустой путь и "." ничего не делают.
func EnsureDirPath(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errors.Wrapf(err, "create dir %s", dir)
	}
	return nil
}

// AtomicWriteFile пишет data во временный файл рядом с path и переименовывает
// его поверх path. Читатель видит либо старое содержимое, либо новое целиком.
// Права итогового файла — DefaultFilePerm.
func AtomicWriteFile(path string, data []byte) (err error) {
	target := filepath.Clean(path)
	dir := filepath.Dir(target)
	if err := EnsureDirPath(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err = tmp.Chmod(DefaultFilePerm); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "sync temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err = os.Rename(tmpName, target); err != nil {
		return errors.Wrap(err, "rename temp file")
	}
	syncDir(dir)
	return nil
}

// syncDir фиксирует запись имени файла. Не все ФС это умеют.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer func() { _ = d.Close() }()
	if err := d.Sync(); err != nil {
		logger.Debugf("storage: sync dir %s: %v", dir, err)
	}
}
