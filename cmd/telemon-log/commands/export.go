package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/worthb0123/go-shared-fork/pkg/delta"
	"github.com/worthb0123/go-shared-fork/pkg/log"
)

// RunExport exports the log file to the specified format. An empty output
// writes to stdout.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return export(reader, format, w)
}

func export(reader *log.Reader, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "channel", "type", "request_id", "size", "registers"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		requestID, size, registers := "", "", ""
		switch {
		case event.Frame != nil:
			size = strconv.Itoa(event.Frame.Size)
			if n, ok := frameRegisters(event.Frame); ok {
				registers = strconv.Itoa(n)
			}
		case event.Message != nil:
			if event.Message.RequestID != nil {
				requestID = strconv.FormatUint(*event.Message.RequestID, 10)
			}
			size = strconv.Itoa(event.Message.DataSize)
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Channel,
			eventType(event),
			requestID,
			size,
			registers,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// frameRegisters counts the register updates in a logged delta frame.
// Truncated or malformed frames are not counted.
func frameRegisters(f *log.FrameEvent) (int, bool) {
	if !f.Binary || f.Truncated {
		return 0, false
	}
	n := 0
	err := delta.Walk(f.Data, func(r delta.Record) {
		n += len(r.Values)
	})
	return n, err == nil
}
