package core

import (
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/nest/pkg/core/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func utf8ToBytes(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, status.ErrInvalidArgument.WrapMessage("not a valid UTF-8 string")
	}
	return []byte(s), nil
}

func bytesToUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", status.ErrInvalidArgument.WrapMessage("content is not valid UTF-8")
	}
	return string(b), nil
}

func jsonToBytes(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.ErrInvalidArgument.Wrap(err)
	}
	return b, nil
}

func bytesToJSON(b []byte, v interface{}) error {
	if err := json.Unmarshal(b, v); err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	return nil
}
