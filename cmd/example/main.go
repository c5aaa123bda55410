package main

import (
	"fmt"
	"log"
	"time"

	"geokd/pkg/client"
	"geokd/pkg/common"
)

func main() {
	fmt.Println("Connecting to GeoKD...")
	cli, err := client.Dial("localhost:9090")
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer cli.Close()

	city := common.Record{City: "Ho Chi Minh City", Lat: 10.7626, Lon: 106.6602}

	fmt.Printf("Inserting: %s\n", city)
	start := time.Now()
	if err := cli.Insert(city, true); err != nil {
		log.Fatalf("Insert failed: %v", err)
	}
	fmt.Printf("Insert done in %v\n", time.Since(start))

	fmt.Println("Nearest to (10.8, 106.7)...")
	start = time.Now()
	rec, dist, err := cli.Nearest(10.8, 106.7)
	if err != nil {
		log.Fatalf("Nearest failed: %v", err)
	}
	fmt.Printf("Got %s at %.2f km (in %v)\n", rec, dist, time.Since(start))

	records, err := cli.Range(common.Rect{MinLat: 8, MinLon: 102, MaxLat: 24, MaxLon: 110})
	if err != nil {
		log.Fatalf("Range failed: %v", err)
	}
	fmt.Printf("%d cities inside the box\n", len(records))
}
