package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"presalepool/internal/model"
)

func TestJsonlSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "audit.jsonl")
	sink := NewJsonlSink(path)

	first := []model.AuditEvent{
		{Seq: 1, Kind: model.EventPoolCreated, State: "open", Group: -1},
		{Seq: 2, Kind: model.EventDeposit, State: "open", Group: 0, Amount: "100"},
	}
	if err := sink.PutEvents(first); err != nil {
		t.Fatalf("put first batch: %v", err)
	}
	if err := sink.PutEvents([]model.AuditEvent{{Seq: 3, Kind: model.EventStateChanged, State: "canceled", Group: -1}}); err != nil {
		t.Fatalf("put second batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer file.Close()

	var events []model.AuditEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev model.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("read %d events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d seq = %d, want %d", i, ev.Seq, i+1)
		}
	}
	if events[1].Group != 0 || events[1].Amount != "100" {
		t.Fatalf("deposit event mangled: %+v", events[1])
	}
	if events[2].Group != -1 {
		t.Fatalf("state change event group = %d, want -1", events[2].Group)
	}
}

func TestJsonlSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink := NewJsonlSink(path)

	if err := sink.PutEvents(nil); err != nil {
		t.Fatalf("put empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch created the file")
	}
}
