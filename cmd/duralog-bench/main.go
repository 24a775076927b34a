// duralog-bench measures Append throughput and Close latency for a
// duralog instance under concurrent producers.
//
// Usage:
//
//	duralog-bench [flags]
//
// Flags:
//
//	--path string       Log file path (default a temp file)
//	--producers int     Number of concurrent producer goroutines (default 50)
//	--records int       Total records to append across all producers (default 100000)
//	--interval duration Commit interval (default 1s)
package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/duralog/duralog"
)

func main() {
	path := flag.String("path", "", "Log file path (default: a fresh temp file)")
	producers := flag.Int("producers", 50, "Number of concurrent producer goroutines")
	records := flag.Int("records", 100000, "Total records to append across all producers")
	interval := flag.Duration("interval", time.Second, "Commit interval")
	flag.Parse()

	target := *path
	if target == "" {
		f, err := os.CreateTemp("", "duralog-bench-*.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "duralog-bench: failed to create temp file: %v\n", err)
			os.Exit(1)
		}
		target = f.Name()
		f.Close()
		defer os.Remove(target)
	}

	fmt.Println("====== duralog benchmark ======")
	fmt.Printf("Path: %s\n", target)
	fmt.Printf("Producers: %d\n", *producers)
	fmt.Printf("Records: %d\n", *records)
	fmt.Printf("Commit interval: %s\n", *interval)
	fmt.Println()

	l, err := duralog.Open(target, duralog.WithCommitInterval(*interval))
	if err != nil {
		fmt.Fprintf(os.Stderr, "duralog-bench: failed to open log: %v\n", err)
		os.Exit(1)
	}

	var completed int64
	var errs int64
	perProducer := *records / *producers
	remainder := *records % *producers

	start := time.Now()
	var wg sync.WaitGroup
	for p := 0; p < *producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			n := perProducer
			if producerID < remainder {
				n++
			}
			for i := 0; i < n; i++ {
				rec := map[string]any{
					"producer": producerID,
					"seq":      i,
				}
				if err := l.Append(rec); err != nil {
					atomic.AddInt64(&errs, 1)
					continue
				}
				atomic.AddInt64(&completed, 1)
			}
		}(p)
	}
	wg.Wait()
	appendElapsed := time.Since(start)

	closeStart := time.Now()
	if err := l.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "duralog-bench: close error: %v\n", err)
	}
	closeElapsed := time.Since(closeStart)

	fmt.Println("====== Results ======")
	fmt.Printf("Append wall time: %v\n", appendElapsed)
	fmt.Printf("Final commit (Close) time: %v\n", closeElapsed)
	fmt.Printf("Completed: %d\n", completed)
	fmt.Printf("Errors: %d\n", errs)
	fmt.Printf("Appends/sec: %.2f\n", float64(completed)/appendElapsed.Seconds())
}
