package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// SaveFile は値をgob形式でファイルに保存する
//
// 書き込みは同じディレクトリの一時ファイルを経由し、完了後にリネームする。
// 途中で失敗しても既存のファイルは壊れない。
//
// 使用例:
//
//	err := model.SaveFile(result, "artifacts/search.gob")
func SaveFile(v interface{}, filename string) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Encode(v, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrap(err, "failed to rename file")
	}
	return nil
}

// LoadFile はgob形式のファイルから値を読み込む
//
// ファイルが存在しない場合は os.ErrNotExist をラップしたエラーを返す。
//
// 使用例:
//
//	var result search.Result
//	err := model.LoadFile(&result, "artifacts/search.gob")
func LoadFile(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return Decode(v, file)
}

// Encode は値をio.Writerにgob形式で書き込む
func Encode(v interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode artifact")
	}
	return nil
}

// Decode はio.Readerからgob形式の値を読み込む
//
// v はポインタでなければならない。
func Decode(v interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode artifact")
	}
	return nil
}
