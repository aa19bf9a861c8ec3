package server

import (
	"net/http"
	"net/url"
)

// Call is a request received by the server, together with the response it was given.
type Call struct {
	URL    *url.URL
	Method string
	Status int

	RequestHeader http.Header
	RequestBody   []byte

	ResponseHeader http.Header
	ResponseBody   []byte
}

type callWatcher struct {
	paths map[string]struct{}
	fn    func(Call)
}

func newCallWatcher(fn func(Call), paths ...string) callWatcher {
	watcher := callWatcher{
		paths: make(map[string]struct{}, len(paths)),
		fn:    fn,
	}

	for _, path := range paths {
		watcher.paths[path] = struct{}{}
	}

	return watcher
}

// isWatching reports whether the watcher wants calls to path. A watcher with no paths watches everything.
func (watcher callWatcher) isWatching(path string) bool {
	if len(watcher.paths) == 0 {
		return true
	}

	_, ok := watcher.paths[path]

	return ok
}

func (watcher callWatcher) publish(call Call) {
	watcher.fn(call)
}
