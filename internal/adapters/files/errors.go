package files

import "errors"

var (
	ErrWrite  = errors.New("write file")
	ErrEncode = errors.New("encode file")
	ErrDecode = errors.New("decode file")
)
