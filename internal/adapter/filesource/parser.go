package filesource

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/backline-io/backline/internal/domain/event"
)

// ParseReturns reads a return batch CSV. Expected columns:
//
//	product_id,return_quantity[,occurred_at]
//
// occurred_at is RFC 3339 and optional. A header row is detected and
// skipped. Malformed rows are reported individually so one bad row never
// sinks the batch.
func ParseReturns(r io.Reader) ([]event.ReturnEvent, []error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		events []event.ReturnEvent
		errs   []error
		line   int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && isHeader(record) {
			continue
		}

		ev, err := parseRow(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

func parseRow(record []string) (event.ReturnEvent, error) {
	if len(record) < 2 {
		return event.ReturnEvent{}, fmt.Errorf("expected at least 2 columns, got %d", len(record))
	}

	qty, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil {
		return event.ReturnEvent{}, fmt.Errorf("parse return_quantity %q: %w", record[1], err)
	}

	ev := event.ReturnEvent{
		ProductID:      strings.TrimSpace(record[0]),
		ReturnQuantity: qty,
	}
	if len(record) >= 3 && strings.TrimSpace(record[2]) != "" {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(record[2]))
		if err != nil {
			return event.ReturnEvent{}, fmt.Errorf("parse occurred_at %q: %w", record[2], err)
		}
		ev.OccurredAt = at.UTC()
	}

	if err := ev.Validate(); err != nil {
		return event.ReturnEvent{}, err
	}
	return ev, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "product_id")
}
