package session

import (
	"net/http"
	"sync"
)

// Jar is the per-browser-session marker sink. The auth resolver is its only
// writer; the HTTP layer flushes pending changes onto the next response.
type Jar struct {
	mu      sync.Mutex
	current Markers
	pending bool
}

func NewJar() *Jar {
	return &Jar{}
}

func (j *Jar) WriteMarkers(m Markers) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.current = m
	j.pending = true
}

func (j *Jar) ClearMarkers() {
	j.WriteMarkers(Markers{})
}

// Current returns the markers most recently written by the resolver.
func (j *Jar) Current() Markers {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current
}

// Flush writes pending markers as cookies. sent reports whether anything was
// emitted; on error the change stays pending.
func (j *Jar) Flush(w http.ResponseWriter, codec *Codec, opts CookieOptions) (sent bool, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.pending {
		return false, nil
	}
	cookies, err := Cookies(codec, j.current, opts)
	if err != nil {
		return false, err
	}
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
	j.pending = false
	return true, nil
}
