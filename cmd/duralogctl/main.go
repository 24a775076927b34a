// duralogctl is a small operator tool for appending to and replaying a
// duralog file from the command line.
//
// Usage:
//
//	duralogctl --path data/duralog.log append   # reads newline-delimited records from stdin
//	duralogctl --path data/duralog.log replay   # prints every record as a JSON line
//
// Flags:
//
//	--path string       Log file path (default "data/duralog.log")
//	--interval duration Commit interval (default 1s)
//	--queue-size int    Submission queue capacity (default 100000)
//	--tag               Tag each appended map record with a request id
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/duralog/duralog"
	"github.com/duralog/duralog/internal/version"
)

func main() {
	path := flag.String("path", "data/duralog.log", "Log file path")
	interval := flag.Duration("interval", time.Second, "Commit interval")
	queueSize := flag.Int("queue-size", 100000, "Submission queue capacity")
	tag := flag.Bool("tag", false, "Tag each appended map record with a request id")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("duralogctl %s (built %s)\n", version.Version, version.BuildTime)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: duralogctl --path <file> [append|replay]")
		os.Exit(2)
	}

	l, err := duralog.Open(*path,
		duralog.WithCommitInterval(*interval),
		duralog.WithMaxQueueSize(*queueSize),
	)
	if err != nil {
		log.Fatalf("duralogctl: failed to open log: %v", err)
	}
	defer func() {
		if err := l.Close(); err != nil {
			log.Printf("duralogctl: close error: %v", err)
		}
	}()

	switch flag.Arg(0) {
	case "append":
		runAppend(l, *tag)
	case "replay":
		runReplay(l)
	default:
		fmt.Fprintf(os.Stderr, "duralogctl: unknown command %q\n", flag.Arg(0))
		os.Exit(2)
	}
}

// runAppend reads newline-delimited input from stdin. A line that
// parses as a JSON object is appended as a structured map (optionally
// tagged with a request id); anything else is appended as raw text.
func runAppend(l *duralog.Log, tag bool) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var count int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err == nil && m != nil {
			if tag {
				m["request_id"] = uuid.New().String()
			}
			if err := l.Append(m); err != nil {
				log.Printf("duralogctl: append error: %v", err)
				continue
			}
		} else if err := l.Append(line); err != nil {
			log.Printf("duralogctl: append error: %v", err)
			continue
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		log.Printf("duralogctl: stdin read error: %v", err)
	}
	fmt.Fprintf(os.Stderr, "duralogctl: appended %d records\n", count)
}

// runReplay prints every well-formed record in the log as one JSON line
// per record: {"kind":"map","value":{...}} or {"kind":"text","value":"..."}.
func runReplay(l *duralog.Log) {
	it, err := l.Replay()
	if err != nil {
		log.Fatalf("duralogctl: replay failed: %v", err)
	}
	defer it.Close()

	enc := json.NewEncoder(os.Stdout)
	var count int
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		entry := map[string]any{}
		if v.Kind == duralog.KindMap {
			entry["kind"] = "map"
			entry["value"] = v.Map
		} else {
			entry["kind"] = "text"
			entry["value"] = v.Text
		}
		if err := enc.Encode(entry); err != nil {
			log.Fatalf("duralogctl: failed to encode record: %v", err)
		}
		count++
	}
	fmt.Fprintf(os.Stderr, "duralogctl: replayed %d records\n", count)
}
