package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"geokd/pkg/client"
	"geokd/pkg/common"
	"geokd/pkg/core"
	"geokd/pkg/core/kdtree"
)

func main() {
	httpAddr := flag.String("http", "http://localhost:8080", "HTTP API base URL")
	tcpAddr := flag.String("tcp", "localhost:9090", "TCP server address")
	nReq := flag.Int("n", 5000, "Number of requests per run")
	nPts := flag.Int("points", 100000, "Points for the in-process index benchmark")
	local := flag.Bool("local", false, "Only run the in-process index benchmark")
	flag.Parse()

	fmt.Printf("GeoKD Benchmark (N=%d)\n", *nReq)
	fmt.Println("---------------------------------------------------")
	runIndexBenchmark(*nPts, *nReq)
	if *local {
		return
	}

	fmt.Printf("  HTTP=%s  TCP=%s\n", *httpAddr, *tcpAddr)
	fmt.Println(">> Starting HTTP Benchmark (JSON over HTTP 1.1)...")
	httpDuration := runHTTPBenchmark(*httpAddr, *nReq)
	fmt.Printf("   HTTP Time: %v | QPS: %.0f\n\n", httpDuration, float64(*nReq)/httpDuration.Seconds())

	fmt.Println(">> Starting TCP Benchmark (Binary Protocol)...")
	tcpDuration := runTCPBenchmark(*tcpAddr, *nReq)
	fmt.Printf("   TCP  Time: %v | QPS: %.0f\n", tcpDuration, float64(*nReq)/tcpDuration.Seconds())

	fmt.Println("---------------------------------------------------")
	speedup := httpDuration.Seconds() / tcpDuration.Seconds()
	fmt.Printf("Conclusion: TCP is %.2fx faster than HTTP\n", speedup)
}

func randomPoint(rng *rand.Rand) (float64, float64) {
	return rng.Float64()*180 - 90, rng.Float64()*360 - 180
}

// runIndexBenchmark compares build and query times of the tree against a linear scan.
func runIndexBenchmark(points, queries int) {
	rng := rand.New(rand.NewSource(42))
	records := make([]common.Record, points)
	for i := range records {
		lat, lon := randomPoint(rng)
		records[i] = common.Record{City: fmt.Sprintf("p%d", i), Lat: lat, Lon: lon}
	}

	start := time.Now()
	tree := kdtree.Build(records)
	fmt.Printf(">> Build: %d points in %v (height %d)\n", points, time.Since(start), tree.Height())

	indexes := []core.Index{tree, core.LinearIndex(records)}
	for _, idx := range indexes {
		qrng := rand.New(rand.NewSource(7))
		start = time.Now()
		for i := 0; i < queries; i++ {
			lat, lon := randomPoint(qrng)
			idx.Nearest(common.Record{Lat: lat, Lon: lon})
		}
		d := time.Since(start)
		fmt.Printf("   %-8s nearest: %v total, %.0f ns/query\n", idx.Type(), d, float64(d.Nanoseconds())/float64(queries))
	}

	rect := common.Rect{MinLat: 30, MinLon: -10, MaxLat: 50, MaxLon: 30}
	for _, idx := range indexes {
		start = time.Now()
		n := len(idx.Range(rect))
		fmt.Printf("   %-8s range:   %d hits in %v\n", idx.Type(), n, time.Since(start))
	}
	fmt.Println()
}

func runHTTPBenchmark(httpAddr string, n int) time.Duration {
	rng := rand.New(rand.NewSource(1))
	start := time.Now()
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 100,
		},
	}

	for i := 0; i < n; i++ {
		lat, lon := randomPoint(rng)
		url := fmt.Sprintf("%s/api/nearest?lat=%f&lon=%f", httpAddr, lat, lon)
		resp, err := client.Get(url)
		if err != nil {
			log.Fatalf("HTTP Req failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return time.Since(start)
}

func runTCPBenchmark(addr string, n int) time.Duration {
	rng := rand.New(rand.NewSource(1))
	start := time.Now()

	cli, err := client.Dial(addr)
	if err != nil {
		log.Fatalf("TCP Connect failed: %v", err)
	}
	defer cli.Close()

	for i := 0; i < n; i++ {
		lat, lon := randomPoint(rng)
		if _, _, err := cli.Nearest(lat, lon); err != nil {
			log.Fatalf("TCP Nearest failed: %v", err)
		}
	}

	return time.Since(start)
}
