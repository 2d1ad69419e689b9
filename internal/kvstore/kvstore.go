package kvstore

import (
	"context"
	"errors"
)

// KV is the string-keyed, string-valued storage the app persists into. It
// stands in for the browser-local storage of the original client: values are
// always read and written whole.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var ErrCorrupt = errors.New("corrupt stored value")
