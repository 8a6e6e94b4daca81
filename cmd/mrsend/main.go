// mrsend queues a message on a running mediaroute daemon.
// Usage:
//
//	mrsend --route r1 "hello"
//	echo hello | mrsend --route r1
//	mrsend --route r1 --binary < frame.bin
//	mrsend --route r1 --listen
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rickgao/mediaroute/internal/api"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "mediaroute API base URL")
	token := flag.String("token", os.Getenv("MEDIAROUTE_API_TOKEN"), "bearer token")
	route := flag.String("route", "", "route ID")
	binary := flag.Bool("binary", false, "send stdin as a binary message")
	listen := flag.Bool("listen", false, "start listening to the route instead of sending")
	stop := flag.Bool("stop", false, "stop listening to the route instead of sending")
	remove := flag.Bool("remove", false, "remove the route instead of sending")
	stats := flag.Bool("stats", false, "print sender stats and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := api.NewClient(*addr, *token, api.WithLogger(logger), api.WithRetries(2, 200*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, client, *route, *binary, *listen, *stop, *remove, *stats, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "mrsend:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *api.Client, route string, binary, listen, stop, remove, stats bool, args []string) error {
	if stats {
		st, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if route == "" {
		return fmt.Errorf("--route is required")
	}

	switch {
	case listen:
		return c.Listen(ctx, route)
	case stop:
		return c.StopListening(ctx, route)
	case remove:
		return c.RemoveRoute(ctx, route)
	}

	if binary {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return c.SendBinary(ctx, route, data)
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSuffix(string(data), "\n")
	}
	return c.SendText(ctx, route, text)
}
