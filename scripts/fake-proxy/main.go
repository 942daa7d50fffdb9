// Command fake-proxy is a local stand-in for the caching proxy, for trying
// cacheload without the real stack:
//
//	go run ./scripts/fake-proxy -addr :8889
//	cacheload run --base-url http://localhost:8889
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// cache remembers which host+path pairs were served before.
type cache struct {
	mu   sync.Mutex
	seen map[string]bool
}

// lookup reports the X-Cache value for key and marks it as stored.
func (c *cache) lookup(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[key] {
		return "HIT"
	}
	c.seen[key] = true
	return "MISS"
}

func main() {
	addr := flag.String("addr", ":8889", "listen address")
	host := flag.String("host", "rickandmortyapi.com", "virtual host to serve; other hosts get 404")
	latency := flag.Duration("latency", 0, "added latency on a MISS")
	flag.Parse()

	c := &cache{seen: make(map[string]bool)}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "healthy")
	})

	mux.HandleFunc("/api/character/", func(w http.ResponseWriter, r *http.Request) {
		if *host != "" && r.Host != *host {
			http.NotFound(w, r)
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/character/")
		avatar := strings.HasPrefix(rest, "avatar/")
		rest = strings.TrimSuffix(strings.TrimPrefix(rest, "avatar/"), ".jpeg")
		id, err := strconv.Atoi(rest)
		if err != nil || id < 1 {
			http.NotFound(w, r)
			return
		}

		status := c.lookup(r.Host + r.URL.Path)
		if status == "MISS" && *latency > 0 {
			time.Sleep(*latency)
		}
		w.Header().Set("X-Cache", status)

		if avatar {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xff, 0xd9})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%d,"name":"Character %d","image":"/api/character/avatar/%d.jpeg"}`, id, id, id)
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}

	log.Printf("Starting fake caching proxy on %s for host %q", *addr, *host)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
