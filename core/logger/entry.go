package logger

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Event types written to the log.
const (
	TypeSessionStart     = "session_start"
	TypeRunCommand       = "run_command"
	TypeCommandResult    = "command_result"
	TypeSetupError       = "setup_error"
	TypeExtensionHandled = "extension_handled"
)

const (
	fieldTimestamp = "timestamp"
	fieldSessionID = "session_id"
	fieldType      = "type"
	fieldEvent     = "event"
)

// LogEntry is a single recorded event.
type LogEntry struct {
	Timestamp *timestamppb.Timestamp
	SessionID string
	Type      string
	Event     *structpb.Struct
}

// GetString returns a string field of the event, or "".
func (le *LogEntry) GetString(key string) string {
	return le.field(key).GetStringValue()
}

// GetNumber returns a numeric field of the event, or 0.
func (le *LogEntry) GetNumber(key string) float64 {
	return le.field(key).GetNumberValue()
}

// GetStrings returns the string items of a list field.
func (le *LogEntry) GetStrings(key string) []string {
	var out []string
	for _, v := range le.field(key).GetListValue().GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// GetNumbers returns the numeric items of a list field.
func (le *LogEntry) GetNumbers(key string) []float64 {
	var out []float64
	for _, v := range le.field(key).GetListValue().GetValues() {
		out = append(out, v.GetNumberValue())
	}
	return out
}

func (le *LogEntry) field(key string) *structpb.Value {
	if le == nil {
		return nil
	}
	return le.Event.GetFields()[key]
}

// MarshalJSON implements json.Marshaler.
func (le *LogEntry) MarshalJSON() ([]byte, error) {
	event := le.Event
	if event == nil {
		event = &structpb.Struct{}
	}

	out := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldTimestamp: structpb.NewStringValue(le.Timestamp.AsTime().UTC().Format(time.RFC3339Nano)),
			fieldSessionID: structpb.NewStringValue(le.SessionID),
			fieldType:      structpb.NewStringValue(le.Type),
			fieldEvent:     structpb.NewStructValue(event),
		},
	}
	return protojson.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (le *LogEntry) UnmarshalJSON(data []byte) error {
	var raw structpb.Struct
	if err := protojson.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := raw.GetFields()
	le.SessionID = fields[fieldSessionID].GetStringValue()
	le.Type = fields[fieldType].GetStringValue()
	le.Event = fields[fieldEvent].GetStructValue()

	le.Timestamp = nil
	if ts := fields[fieldTimestamp].GetStringValue(); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
		le.Timestamp = timestamppb.New(parsed)
	}

	return nil
}
