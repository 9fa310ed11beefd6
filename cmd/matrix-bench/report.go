package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// BenchmarkResult stores the results of one benchmark run
type BenchmarkResult struct {
	Policy     string
	Source     string
	Access     string
	Dim        int
	BlockSize  int
	Capacity   int
	Readers    int
	Operations int
	Duration   float64 // seconds
	Throughput float64 // lookups per second
	Latency    float64 // average microseconds per lookup
	HitRate    float64 // percent
	BlockLoads uint64
	Timestamp  time.Time
}

var csvHeader = []string{
	"Timestamp", "Policy", "Source", "Access", "Dim", "BlockSize", "Capacity",
	"Readers", "Operations", "Duration", "Throughput", "Latency", "HitRate", "BlockLoads",
}

// SaveResultCSV saves benchmark results to a CSV file
func SaveResultCSV(results []BenchmarkResult, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			r.Timestamp.Format(time.RFC3339),
			r.Policy,
			r.Source,
			r.Access,
			strconv.Itoa(r.Dim),
			strconv.Itoa(r.BlockSize),
			strconv.Itoa(r.Capacity),
			strconv.Itoa(r.Readers),
			strconv.Itoa(r.Operations),
			fmt.Sprintf("%.2f", r.Duration),
			fmt.Sprintf("%.2f", r.Throughput),
			fmt.Sprintf("%.3f", r.Latency),
			fmt.Sprintf("%.2f", r.HitRate),
			strconv.FormatUint(r.BlockLoads, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// LoadResultCSV loads benchmark results from a CSV file
func LoadResultCSV(filename string) ([]BenchmarkResult, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	// Skip header
	if len(records) <= 1 {
		return []BenchmarkResult{}, nil
	}
	records = records[1:]

	results := make([]BenchmarkResult, 0, len(records))
	for _, record := range records {
		if len(record) < len(csvHeader) {
			continue
		}

		timestamp, _ := time.Parse(time.RFC3339, record[0])
		dim, _ := strconv.Atoi(record[4])
		blockSize, _ := strconv.Atoi(record[5])
		capacity, _ := strconv.Atoi(record[6])
		readers, _ := strconv.Atoi(record[7])
		operations, _ := strconv.Atoi(record[8])
		duration, _ := strconv.ParseFloat(record[9], 64)
		throughput, _ := strconv.ParseFloat(record[10], 64)
		latency, _ := strconv.ParseFloat(record[11], 64)
		hitRate, _ := strconv.ParseFloat(record[12], 64)
		blockLoads, _ := strconv.ParseUint(record[13], 10, 64)

		results = append(results, BenchmarkResult{
			Timestamp:  timestamp,
			Policy:     record[1],
			Source:     record[2],
			Access:     record[3],
			Dim:        dim,
			BlockSize:  blockSize,
			Capacity:   capacity,
			Readers:    readers,
			Operations: operations,
			Duration:   duration,
			Throughput: throughput,
			Latency:    latency,
			HitRate:    hitRate,
			BlockLoads: blockLoads,
		})
	}

	return results, nil
}

// PrintResultTable prints a formatted table of benchmark results
func PrintResultTable(w io.Writer, results []BenchmarkResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}

	fmt.Fprintln(w, "+--------+--------+--------+---------+--------------+----------+----------+---------+")
	fmt.Fprintln(w, "| Policy | Source | Access | Readers |   Throughput |  Latency | Hit Rate |   Loads |")
	fmt.Fprintln(w, "+--------+--------+--------+---------+--------------+----------+----------+---------+")

	for _, r := range results {
		latencyUnit := "µs"
		latency := r.Latency
		if latency > 1000 {
			latencyUnit = "ms"
			latency /= 1000
		}

		fmt.Fprintf(w, "| %-6s | %-6s | %-6s | %7d | %12.2f | %6.2f%s | %7.2f%% | %7d |\n",
			r.Policy,
			r.Source,
			r.Access,
			r.Readers,
			r.Throughput,
			latency, latencyUnit,
			r.HitRate,
			r.BlockLoads)
	}
	fmt.Fprintln(w, "+--------+--------+--------+---------+--------------+----------+----------+---------+")
}
