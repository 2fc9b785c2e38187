package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

func getCmd(w io.Writer, what string, args []string) error {
	fs := flag.NewFlagSet(what, flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	id := fs.String("id", "", "player id (player)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := "/admin/stats"
	if what == "player" {
		pid, err := uuid.Parse(strings.TrimSpace(*id))
		if err != nil {
			return fmt.Errorf("bad -id: %w", err)
		}
		path = "/admin/players/" + pid.String()
	}

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + path
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(w, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: %s", u, resp.Status)
	}
	return nil
}
