package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/engine"
	"github.com/park285/Cheese-Xiangqi/internal/engine/ucci"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

func main() {
	path := flag.String("engine", os.Getenv("XIANGQI_ENGINE_PATH"), "engine binary")
	presetName := flag.String("preset", os.Getenv("XIANGQI_ENGINE_PRESET"), "strength preset")
	moves := flag.String("moves", "", "space separated move history, e.g. \"h2e2 h9g7\"")
	flag.Parse()

	if *path == "" {
		log.Fatal("XIANGQI_ENGINE_PATH or -engine is required")
	}
	preset, err := engine.GetPreset(*presetName)
	if err != nil {
		log.Fatalf("preset: %v (known: %s)", err, strings.Join(engine.PresetNames(), ", "))
	}

	g := xiangqi.NewGameState()
	for _, tok := range strings.Fields(*moves) {
		mv, err := xiangqi.NotationToMove(tok)
		if err != nil {
			log.Fatalf("move %q: %v", tok, err)
		}
		if res := g.MakeMove(mv.From, mv.To); !res.Accepted() {
			log.Fatalf("move %q is illegal here", tok)
		}
	}

	client, err := ucci.Start(*path, ucci.Options{})
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	started := time.Now()
	if err := client.Handshake(ctx); err != nil {
		log.Fatalf("handshake: %v", err)
	}
	log.Printf("handshake ok in %s", time.Since(started).Round(time.Millisecond))

	req := preset.Request(g.HistoryNotation())
	for _, line := range req.Commands() {
		log.Printf("> %s", line)
	}

	started = time.Now()
	best, err := client.BestMove(ctx, req)
	if err != nil {
		log.Fatalf("search: %v", err)
	}
	mv, err := xiangqi.NotationToMove(best)
	if err != nil {
		log.Fatalf("engine answered %q: %v", best, err)
	}
	if !xiangqi.IsValidMove(&g.Board, mv.From, mv.To, g.Turn) {
		log.Printf("warning: %s is not legal in this position", best)
	}
	fmt.Printf("bestmove %s (%s, %s)\n", best, preset.Name, time.Since(started).Round(time.Millisecond))
}
