package requestcache

import "errors"

// ErrNoSearcher is returned by Search before SetSearcher was called.
var ErrNoSearcher = errors.New("request cache has no searcher")
