package firestore

import (
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/zetatrack/internal/extract"
	"github.com/verte-zerg/zetatrack/internal/model"
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// value is a Firestore REST typed value. Only the variants used by sessions are modelled.
type value struct {
	StringValue    *string     `json:"stringValue,omitempty"`
	IntegerValue   *string     `json:"integerValue,omitempty"`
	TimestampValue *string     `json:"timestampValue,omitempty"`
	ArrayValue     *arrayValue `json:"arrayValue,omitempty"`
	MapValue       *mapValue   `json:"mapValue,omitempty"`
}

type arrayValue struct {
	Values []value `json:"values,omitempty"`
}

type mapValue struct {
	Fields map[string]value `json:"fields,omitempty"`
}

type document struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]value `json:"fields"`
	CreateTime string           `json:"createTime,omitempty"`
}

type listResponse struct {
	Documents     []document `json:"documents"`
	NextPageToken string     `json:"nextPageToken"`
}

func stringVal(s string) value { return value{StringValue: &s} }

func integerVal(n int64) value {
	s := strconv.FormatInt(n, 10)
	return value{IntegerValue: &s}
}

func timestampVal(t time.Time) value {
	s := t.UTC().Format(timestampLayout)
	return value{TimestampValue: &s}
}

// encodeSession builds the document body for a new session.
func encodeSession(s model.Session, userID string, at time.Time) document {
	problems := make([]value, 0, len(s.Problems))
	for _, p := range s.Problems {
		problems = append(problems, value{MapValue: &mapValue{Fields: map[string]value{
			"question": stringVal(p.Question),
			"answer":   stringVal(p.Answer),
			"latency":  integerVal(p.LatencyMs),
		}}})
	}
	return document{Fields: map[string]value{
		"score":     integerVal(int64(s.Score)),
		"timestamp": timestampVal(at),
		"userId":    stringVal(userID),
		"problems":  {ArrayValue: &arrayValue{Values: problems}},
	}}
}

func (d document) setUserID(userID string) {
	d.Fields["userId"] = stringVal(userID)
}

// decodeSession reads a stored session. Missing or malformed fields decode to zero values.
func decodeSession(d document) model.StoredSession {
	out := model.StoredSession{
		ID:     documentID(d.Name),
		Score:  int(intField(d.Fields, "score")),
		UserID: stringField(d.Fields, "userId"),
		Remote: true,
	}
	if v, ok := d.Fields["timestamp"]; ok && v.TimestampValue != nil {
		if ts, err := time.Parse(time.RFC3339Nano, *v.TimestampValue); err == nil {
			out.Timestamp = ts
		}
	}
	if out.Timestamp.IsZero() && d.CreateTime != "" {
		if ts, err := time.Parse(time.RFC3339Nano, d.CreateTime); err == nil {
			out.Timestamp = ts
		}
	}
	if v, ok := d.Fields["problems"]; ok && v.ArrayValue != nil {
		for _, item := range v.ArrayValue.Values {
			if item.MapValue == nil {
				continue
			}
			q := stringField(item.MapValue.Fields, "question")
			op := model.OpUnknown
			if !model.PlaceholderQuestion(q) {
				op = extract.OperationOf(q)
			}
			out.Problems = append(out.Problems, model.Problem{
				Question:      q,
				Answer:        stringField(item.MapValue.Fields, "answer"),
				LatencyMs:     intField(item.MapValue.Fields, "latency"),
				OperationType: op,
			})
		}
	}
	return out
}

func stringField(fields map[string]value, name string) string {
	v, ok := fields[name]
	if !ok || v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

func intField(fields map[string]value, name string) int64 {
	v, ok := fields[name]
	if !ok || v.IntegerValue == nil {
		return 0
	}
	n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func documentID(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
