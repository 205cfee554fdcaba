// Command roomctl is an operator CLI for a running storyroom server.
//
// Usage:
//
//	roomctl [-server URL] health
//	roomctl [-server URL] rooms
//	roomctl [-server URL] state <room>
//	roomctl [-server URL] stop <room>
//	roomctl [-server URL] archive [limit]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/veilcraft/storyroom/pkg/client"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8787", "storyroom server base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c := client.New(*server)
	if err := dispatch(ctx, c, args); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "roomctl: room not found")
		} else {
			fmt.Fprintf(os.Stderr, "roomctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, c *client.Client, args []string) error {
	switch args[0] {
	case "health":
		if err := c.Health(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "rooms":
		rooms, err := c.Rooms(ctx)
		if err != nil {
			return err
		}
		for _, id := range rooms {
			fmt.Println(id)
		}
		return nil

	case "state":
		if len(args) < 2 {
			return fmt.Errorf("state requires a room id")
		}
		sess, err := c.State(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(sess)

	case "stop":
		if len(args) < 2 {
			return fmt.Errorf("stop requires a room id")
		}
		if err := c.Stop(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("stopped", args[1])
		return nil

	case "archive":
		limit := 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("bad limit %q", args[1])
			}
			limit = n
		}
		sessions, err := c.Archive(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(sessions)

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: roomctl [-server URL] health|rooms|state <room>|stop <room>|archive [limit]")
}
