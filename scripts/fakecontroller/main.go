// Fakecontroller is a stand-in for the central controller used when running
// the heartbeat agent locally. It accepts GET /?podname=..&k=..&a=.. and logs
// every report together with the skew between k and its own clock.
//
// Usage:
//
//	go run ./scripts/fakecontroller -port 3000
//	go run ./scripts/fakecontroller -port 3000 -delay 900ms
//
// A non-zero -delay makes every response slow, which is useful for watching
// the agent's request timeout fire.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

type report struct {
	podname string
	k       int64
	a       int64
}

func parseReport(r *http.Request) (report, error) {
	q := r.URL.Query()

	podname := q.Get("podname")
	if podname == "" {
		return report{}, fmt.Errorf("missing podname")
	}

	k, err := strconv.ParseInt(q.Get("k"), 10, 64)
	if err != nil {
		return report{}, fmt.Errorf("invalid k: %w", err)
	}

	a, err := strconv.ParseInt(q.Get("a"), 10, 64)
	if err != nil {
		return report{}, fmt.Errorf("invalid a: %w", err)
	}

	return report{podname: podname, k: k, a: a}, nil
}

func main() {
	port := flag.Int("port", 3000, "port to listen on")
	delay := flag.Duration("delay", 0, "artificial delay before each response")
	flag.Parse()

	var received atomic.Int64

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")

		rep, err := parseReport(r)
		if err != nil {
			log.Printf("rejected report from %s: %v", r.RemoteAddr, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n := received.Add(1)
		skew := time.Now().Unix() - rep.k
		log.Printf("#%d podname=%s k=%d a=%d skew=%ds", n, rep.podname, rep.k, rep.a, skew)

		if *delay > 0 {
			time.Sleep(*delay)
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Enqueued req for processing [for %s w/ k=%d & a=%d]", rep.podname, rep.k, rep.a)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Fake controller listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
