package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsTotal                 atomic.Uint64
	contentReadsTotal            atomic.Uint64
	extractCallsTotal            atomic.Uint64
	extractFailuresTotal         atomic.Uint64
	extractCacheHitsTotal        atomic.Uint64
	extractCacheWriteFailedTotal atomic.Uint64

	extractDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncUploads counts a stored document.
func IncUploads() {
	uploadsTotal.Add(1)
}

// IncContentReads counts a get-content read.
func IncContentReads() {
	contentReadsTotal.Add(1)
}

// IncExtractCalls counts a call to the external extractor.
func IncExtractCalls() {
	extractCallsTotal.Add(1)
}

// IncExtractFailures counts a failed extraction.
func IncExtractFailures() {
	extractFailuresTotal.Add(1)
}

// IncExtractCacheHits counts a read that found extracted text already cached.
func IncExtractCacheHits() {
	extractCacheHitsTotal.Add(1)
}

// IncExtractCacheWriteFailures counts a swallowed write-back failure.
func IncExtractCacheWriteFailures() {
	extractCacheWriteFailedTotal.Add(1)
}

// ObserveExtractDurationMs records an extraction duration in milliseconds.
func ObserveExtractDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	extractDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "uploads_total", "Total documents stored", uploadsTotal.Load())
	writeCounter(&buf, "content_reads_total", "Total document content reads", contentReadsTotal.Load())
	writeCounter(&buf, "extract_calls_total", "Total calls to the text extractor", extractCallsTotal.Load())
	writeCounter(&buf, "extract_failures_total", "Total failed extractions", extractFailuresTotal.Load())
	writeCounter(&buf, "extract_cache_hits_total", "Total reads served from cached text", extractCacheHitsTotal.Load())
	writeCounter(&buf, "extract_cache_write_failures_total", "Total failed extracted text write-backs", extractCacheWriteFailedTotal.Load())
	writeHistogram(&buf, "extract_duration_ms", "Extraction duration in milliseconds", extractDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	// Observe already counts a value into every bucket it fits, so counts are cumulative.
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
