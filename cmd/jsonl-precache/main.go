// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command jsonl-precache builds offset caches for one or more JSONL
// files ahead of time, e.g. as a build step before a training run:
//
//	jsonl-precache -v -concurrency 4 train.jsonl valid.jsonl
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jsonl-cache/jsonl"
)

func main() {
	files := flag.String("files", "", "comma-separated list of JSONL files to cache (may also be given as arguments)")
	concurrency := flag.Int("concurrency", 1, "number of files to cache at once")
	force := flag.Bool("force", false, "rebuild caches even when a valid one exists")
	verbose := flag.Bool("v", false, "log caching progress")
	flag.Parse()

	paths := flag.Args()
	if *files != "" {
		for _, f := range strings.Split(*files, ",") {
			if f = strings.TrimSpace(f); f != "" {
				paths = append(paths, f)
			}
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: jsonl-precache [flags] file.jsonl ...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	opts := []jsonl.Option{jsonl.WithConcurrency(*concurrency)}
	if *force {
		opts = append(opts, jsonl.WithForceCache())
	}
	if *verbose {
		opts = append(opts, jsonl.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	}

	if err := jsonl.Precache(context.Background(), paths, opts...); err != nil {
		fmt.Fprintln(os.Stderr, "jsonl-precache:", err)
		os.Exit(1)
	}
}
