// Command requests-smoke drives a handful of end-to-end scenarios
// against a real HTTP/1.1 endpoint: a plain GET, a POST with a body,
// a same-host redirect chain, a too-many-redirects failure, a cookie
// round trip, and a streaming body read. Point it at a server that
// exposes the same paths as requesttest.Server (/get, /post,
// /redirect/{n}, /set-cookie, /echo-cookie, /image):
//
//	REQUESTS_SMOKE_TARGET=http://localhost:8080 go run ./cmd/requests-smoke
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	requests "github.com/rh-m2/requests"
)

func main() {
	target := os.Getenv("REQUESTS_SMOKE_TARGET")
	if target == "" {
		fmt.Fprintln(os.Stderr, "REQUESTS_SMOKE_TARGET is not set")
		os.Exit(1)
	}

	sess := requests.NewSession(
		requests.WithRedirectPolicy(requests.RedirectSameHost),
		requests.WithMaxRedirects(5),
	)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	run := func(name string, fn func() error) {
		if err := fn(); err != nil {
			fmt.Printf("FAIL %s: %v\n", name, err)
			failed = true
			return
		}
		fmt.Printf("ok   %s\n", name)
	}

	run("get", func() error {
		resp, err := sess.Get(ctx, target+"/get")
		if err != nil {
			return err
		}
		if resp.StatusCode != 200 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})

	run("post", func() error {
		body, err := requests.NewJSONBody(map[string]string{"hello": "world"})
		if err != nil {
			return err
		}
		resp, err := sess.Post(ctx, target+"/post", body)
		if err != nil {
			return err
		}
		if resp.StatusCode != 200 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})

	run("redirect-chain", func() error {
		resp, err := sess.Get(ctx, target+"/redirect/3")
		if err != nil {
			return err
		}
		if len(resp.History) != 3 {
			return fmt.Errorf("expected 3 history entries, got %d", len(resp.History))
		}
		return nil
	})

	run("too-many-redirects", func() error {
		_, err := sess.Get(ctx, target+"/redirect/10")
		if !errors.Is(err, requests.ErrTooManyRedirects) {
			return fmt.Errorf("expected ErrTooManyRedirects, got %v", err)
		}
		return nil
	})

	run("cookie-roundtrip", func() error {
		if _, err := sess.Get(ctx, target+"/set-cookie?value=abc123"); err != nil {
			return err
		}
		resp, err := sess.Get(ctx, target+"/echo-cookie")
		if err != nil {
			return err
		}
		if string(resp.Body) != "abc123" {
			return fmt.Errorf("expected cookie abc123, got %q", resp.Body)
		}
		return nil
	})

	run("streaming-body", func() error {
		sr, err := sess.StreamRequest(ctx, "GET", target+"/image", nil, requests.NewHeader())
		if err != nil {
			return err
		}
		var total int
		buf := make([]byte, 4096)
		for {
			n, err := sr.Stream.ReadSome(buf)
			total += n
			if err != nil {
				if errors.Is(err, requests.ErrEOF) {
					break
				}
				return err
			}
		}
		if total == 0 {
			return fmt.Errorf("read zero bytes")
		}
		return nil
	})

	if failed {
		os.Exit(1)
	}
}
