package orpheus

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPublisherBackpressure(t *testing.T) {
	const capacity = 8
	const extra = 5

	pub, capture := capturePublisher(capacity)

	// Enqueue before the worker starts: nothing drains yet.
	for i := 0; i < capacity+extra; i++ {
		pub.Publish(TelemetryEvent{TraceID: strconv.Itoa(i), EventType: EventInfo, Timestamp: time.Now()})
	}

	pub.Start()
	pub.Stop()

	delivered := capture.all()
	if len(delivered) != capacity {
		t.Errorf("Expected exactly %d delivered events, got %d", capacity, len(delivered))
	}
	if got := pub.Dropped(); got != extra {
		t.Errorf("Expected %d dropped events, got %d", extra, got)
	}
}

func TestPublisherFIFO(t *testing.T) {
	pub, capture := capturePublisher(32)

	for i := 0; i < 10; i++ {
		pub.Publish(TelemetryEvent{TraceID: strconv.Itoa(i), EventType: EventInfo, Timestamp: time.Now()})
	}

	pub.Start()
	pub.Stop()

	delivered := capture.all()
	if len(delivered) != 10 {
		t.Fatalf("Expected 10 events, got %d", len(delivered))
	}
	for i, e := range delivered {
		if e.TraceID != strconv.Itoa(i) {
			t.Fatalf("Expected FIFO order, got %s at position %d", e.TraceID, i)
		}
	}
}

func TestPublisherExtraTags(t *testing.T) {
	var mu sync.Mutex
	var got []TelemetryEvent

	pub := NewPublisher(PublisherConfig{
		Capacity:  8,
		ExtraTags: OfMap(map[string]string{"env": "prod", "region": "us-east-1"}),
		Sink: func(e TelemetryEvent, _ *bytes.Buffer) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		},
	})

	pub.Publish(TelemetryEvent{
		TraceID:   "t1",
		EventType: EventInfo,
		Tags:      OfMap(map[string]string{"env": "dev", "k": "v"}),
	})
	pub.Start()
	pub.Stop()

	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	tags := got[0].Tags
	if tags["env"] != "prod" {
		t.Errorf("Expected configured extra tag to win, got env=%s", tags["env"])
	}
	if tags["region"] != "us-east-1" || tags["k"] != "v" {
		t.Errorf("Expected merged tags, got %v", tags)
	}
}

func TestPublisherFilter(t *testing.T) {
	var mu sync.Mutex
	var lines []string

	pub := NewPublisher(PublisherConfig{
		Capacity: 8,
		Filter: func(e TelemetryEvent) (TelemetryEvent, bool) {
			if e.EventType == EventInfo {
				return e, false // suppress
			}
			e.Tags = e.Tags.AddString("filtered", "yes") // rewrite
			return e, true
		},
		Listener: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	})

	pub.Publish(TelemetryEvent{TraceID: "drop-me", EventType: EventInfo})
	pub.Publish(TelemetryEvent{TraceID: "keep-me", EventType: EventError})
	pub.Start()
	pub.Stop()

	if len(lines) != 1 {
		t.Fatalf("Expected 1 surviving event, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"tid":"keep-me"`) {
		t.Errorf("Expected the error event, got %s", lines[0])
	}
	if !strings.Contains(lines[0], `"filtered":"yes"`) {
		t.Errorf("Expected the rewritten tag, got %s", lines[0])
	}
}

func TestPublisherListenerReceivesWireString(t *testing.T) {
	var mu sync.Mutex
	var lines []string

	pub := NewPublisher(PublisherConfig{
		Capacity: 8,
		Listener: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	})
	pub.Start()

	pub.Publish(TelemetryEvent{TraceID: "a", EventType: EventStarted, Timestamp: time.Time{}})
	pub.Publish(TelemetryEvent{TraceID: "b", EventType: EventCompleted, Timestamp: time.Time{}})
	pub.Stop()

	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	// The reusable buffer is cleared between events: each line is one
	// self-contained document.
	for _, line := range lines {
		if !strings.HasPrefix(line, `{"ts":`) || !strings.HasSuffix(line, "}") {
			t.Errorf("Expected a single wire document, got %s", line)
		}
	}
	if !strings.Contains(lines[0], `"tid":"a"`) || !strings.Contains(lines[1], `"tid":"b"`) {
		t.Errorf("Expected ordered output, got %v", lines)
	}
}

func TestPublisherStopIdempotent(t *testing.T) {
	pub, capture := capturePublisher(8)
	pub.Start()

	pub.Publish(TelemetryEvent{TraceID: "x", EventType: EventInfo})
	pub.Stop()
	pub.Stop() // second stop is a no-op

	if len(capture.all()) != 1 {
		t.Errorf("Expected 1 event, got %d", len(capture.all()))
	}

	// Publishing after stop drops silently.
	before := pub.Dropped()
	pub.Publish(TelemetryEvent{TraceID: "y", EventType: EventInfo})
	if pub.Dropped() != before+1 {
		t.Error("Expected publish after stop to count as dropped")
	}
}

func TestPublisherConcurrentProducers(t *testing.T) {
	pub, capture := capturePublisher(1024)
	pub.Start()

	var wg sync.WaitGroup
	const producers = 8
	const perProducer = 50

	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				pub.Publish(TelemetryEvent{TraceID: strconv.Itoa(n), EventType: EventInfo})
			}
		}(i)
	}

	wg.Wait()
	pub.Stop()

	total := len(capture.all()) + int(pub.Dropped())
	if total != producers*perProducer {
		t.Errorf("Expected %d events accounted for, got %d", producers*perProducer, total)
	}
}
