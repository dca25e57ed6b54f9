package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// LogEmitter writes one line per event to a writer.
//
// Text mode (default) is meant for humans:
//
//	[node_scheduled] run=order-42 step=3 node=charge action=charge-card handle=9f2c...
//
// JSON mode writes one object per line (JSONL):
//
//	{"run":"order-42","step":3,"node":"charge","msg":"node_scheduled","meta":{"action":"charge-card"}}
//
// Writes are serialized, so one LogEmitter can be shared by many engines.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer means os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes event as a single line.
func (l *LogEmitter) Emit(event Event) {
	var line string
	if l.jsonMode {
		line = formatJSON(event)
	} else {
		line = formatText(event)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.writer, line+"\n")
}

func formatJSON(event Event) string {
	data, err := json.Marshal(struct {
		RunID  string                 `json:"run"`
		Step   int                    `json:"step"`
		NodeID string                 `json:"node,omitempty"`
		Msg    string                 `json:"msg"`
		Meta   map[string]interface{} `json:"meta,omitempty"`
	}{
		RunID:  event.RunID,
		Step:   event.Step,
		NodeID: event.NodeID,
		Msg:    event.Msg,
		Meta:   event.Meta,
	})
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "failed to marshal event: "+err.Error())
	}
	return string(data)
}

func formatText(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] run=%s step=%d", event.Msg, event.RunID, event.Step)
	if event.NodeID != "" {
		fmt.Fprintf(&b, " node=%s", event.NodeID)
	}

	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(event.Meta[k])
		if strings.ContainsAny(v, " \t\"") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}
