package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/httpapi"
	"github.com/park285/Cheese-Xiangqi/internal/watch"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi/pkg/xiangqidto"
)

func main() {
	baseURL := getenvDefault("XIANGQI_URL", "http://127.0.0.1:7878")
	watchURL := getenvDefault("XIANGQI_WATCH_URL", "ws://127.0.0.1:7879")

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	client := httpapi.NewClient(baseURL, httpapi.WithTimeout(8*time.Second), httpapi.WithRetry(2))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var err error
	switch args[0] {
	case "new":
		err = cmdNew(ctx, client, args[1:])
	case "show":
		err = need(args, 2, func() error {
			st, err := client.Game(ctx, args[1])
			if err != nil {
				return err
			}
			printState(st)
			return nil
		})
	case "moves":
		err = need(args, 3, func() error {
			dests, err := client.LegalMoves(ctx, args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(dests, " "))
			return nil
		})
	case "move":
		err = need(args, 3, func() error {
			resp, err := client.Move(ctx, args[1], args[2])
			if err != nil {
				return err
			}
			printMove(resp)
			return nil
		})
	case "poll":
		err = need(args, 2, func() error { return cmdPoll(ctx, client, args[1]) })
	case "undo":
		err = need(args, 2, func() error {
			resp, err := client.Undo(ctx, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("undone %d\n", resp.Undone)
			printState(resp.State)
			return nil
		})
	case "list":
		limit := 0
		if len(args) > 1 {
			limit, _ = strconv.Atoi(args[1])
		}
		err = cmdList(ctx, client, limit)
	case "history":
		limit := 0
		if len(args) > 1 {
			limit, _ = strconv.Atoi(args[1])
		}
		err = cmdHistory(ctx, client, limit)
	case "watch":
		err = need(args, 2, func() error { return cmdWatch(watchURL, args[1]) })
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		var apiErr *httpapi.APIError
		if errors.As(err, &apiErr) && apiErr.Domain.Code != "" {
			log.Fatalf("%s: %s", apiErr.Domain.Code, apiErr.Domain.Message)
		}
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, strings.Join([]string{
		"usage: xiangqictl <command>",
		"  new [pvp|pve] [red|black] [preset]",
		"  show <id>",
		"  moves <id> <square>",
		"  move <id> <h2e2>",
		"  poll <id>            wait for the engine reply",
		"  undo <id>",
		"  list [limit]         live matches",
		"  history [limit]",
		"  watch <id>           stream snapshots until interrupted",
	}, "\n"))
}

func need(args []string, n int, fn func() error) error {
	if len(args) < n {
		usage()
		os.Exit(2)
	}
	return fn()
}

func cmdNew(ctx context.Context, c *httpapi.Client, args []string) error {
	req := xiangqidto.CreateGameRequest{Mode: "pvp"}
	if len(args) > 0 {
		req.Mode = args[0]
	}
	if len(args) > 1 {
		req.EngineSide = args[1]
	}
	if len(args) > 2 {
		req.Preset = args[2]
	}
	st, err := c.CreateGame(ctx, req)
	if err != nil {
		return err
	}
	printState(st)
	return nil
}

// cmdPoll drives the engine until it has replied or ctx ends.
func cmdPoll(ctx context.Context, c *httpapi.Client, id string) error {
	for {
		resp, err := c.Poll(ctx, id)
		if err != nil {
			return err
		}
		if resp.Result != nil || !resp.State.EngineBusy {
			printMove(resp)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func cmdList(ctx context.Context, c *httpapi.Client, limit int) error {
	games, err := c.ListGames(ctx, limit)
	if err != nil {
		return err
	}
	for _, g := range games {
		fmt.Printf("%s  %-4s %-5s %-10s %3d plies  %s\n",
			g.UpdatedAt.Local().Format("2006-01-02 15:04"), g.Mode, g.Turn, g.Status, g.Plies, g.ID)
	}
	return nil
}

func cmdHistory(ctx context.Context, c *httpapi.Client, limit int) error {
	games, err := c.History(ctx, limit)
	if err != nil {
		return err
	}
	for _, g := range games {
		fmt.Printf("%s  %-4s %-10s %-9s %3d plies  %s\n",
			g.EndedAt.Local().Format("2006-01-02 15:04"), g.Mode, g.Result, g.ResultMethod, len(g.Moves), g.MatchID)
	}
	return nil
}

func cmdWatch(baseURL, id string) error {
	w := watch.NewWatcher(strings.TrimRight(baseURL, "/")+"/watch/"+id, 5, time.Second)
	w.OnStateChange(func(s watch.State) { log.Printf("watch state: %s", s) })
	w.OnSnapshot(func(s domain.MatchSnapshot) {
		b, err := xiangqi.ParseBoard(s.FEN)
		if err != nil {
			log.Printf("bad snapshot board: %v", err)
			return
		}
		fmt.Print(b.String())
		fmt.Printf("turn=%s status=%s moves=%d %s\n\n", s.Turn, s.Status, len(s.Moves), s.LastMessage)
	})

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := w.Connect(cctx)
	cancel()
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	return w.Close(sctx)
}

func printState(st *xiangqidto.GameState) {
	if st == nil {
		return
	}
	if b, err := xiangqi.ParseBoard(st.FEN); err == nil {
		fmt.Print(b.String())
	}
	fmt.Printf("id=%s mode=%s turn=%s status=%s", st.ID, st.Mode, st.Turn, st.Status)
	if st.InCheck {
		fmt.Print(" check")
	}
	if st.EngineBusy {
		fmt.Print(" (engine thinking)")
	}
	fmt.Println()
	if st.Message != "" {
		fmt.Println(st.Message)
	}
}

func printMove(resp *xiangqidto.MoveResponse) {
	if resp.Result != nil {
		fmt.Printf("%s %s: %s\n", resp.Result.Side, resp.Result.Move, resp.Result.Kind)
	}
	printState(resp.State)
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
