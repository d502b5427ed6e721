// Package schema maps tokenized access-log lines onto the fixed field
// layouts of the two AWS load-balancer log dialects.
package schema

import (
	"bytes"
	"fmt"
)

// Format identifies a load-balancer log dialect. The set is closed: each
// dialect is pure data (field names plus expected token count) consumed
// by the shared zipping logic in Record.
type Format int

const (
	// ALB is the Application Load Balancer dialect, 23 fields.
	ALB Format = iota
	// ClassicLB is the Classic Load Balancer dialect, 15 fields.
	ClassicLB
)

// Field layouts follow the documented AWS access-log entry formats:
// https://docs.aws.amazon.com/elasticloadbalancing/latest/application/load-balancer-access-logs.html
// https://docs.aws.amazon.com/elasticloadbalancing/latest/classic/access-log-collection.html
//
// client/target/backend hold the joined ip:port token as logged.
var (
	albFields = []string{
		"type",
		"time",
		"elb",
		"client",
		"target",
		"request_processing_time",
		"target_processing_time",
		"response_processing_time",
		"elb_status_code",
		"target_status_code",
		"received_bytes",
		"sent_bytes",
		"request",
		"user_agent",
		"ssl_cipher",
		"ssl_protocol",
		"target_group_arn",
		"trace_id",
		"domain_name",
		"chosen_cert_arn",
		"matched_rule_priority",
		"request_creation_time",
		"actions_executed",
	}

	classicLBFields = []string{
		"time",
		"elb",
		"client",
		"backend",
		"request_processing_time",
		"backend_processing_time",
		"response_processing_time",
		"elb_status_code",
		"backend_status_code",
		"received_bytes",
		"sent_bytes",
		"request",
		"user_agent",
		"ssl_cipher",
		"ssl_protocol",
	}
)

// ParseFormat parses the CLI name of a dialect.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "alb":
		return ALB, nil
	case "classic-lb":
		return ClassicLB, nil
	default:
		return 0, fmt.Errorf("unknown load balancer type %q (want alb or classic-lb)", s)
	}
}

func (f Format) String() string {
	switch f {
	case ALB:
		return "alb"
	case ClassicLB:
		return "classic-lb"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Fields returns the ordered field-name list for the dialect. Callers
// must not modify the returned slice.
func (f Format) Fields() []string {
	switch f {
	case ClassicLB:
		return classicLBFields
	default:
		return albFields
	}
}

// NumFields returns the expected token count for the dialect.
func (f Format) NumFields() int {
	return len(f.Fields())
}

// MismatchError reports a line whose token count does not match the
// selected dialect.
type MismatchError struct {
	Format Format
	Want   int
	Got    int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s line has %d fields, want %d", e.Format, e.Got, e.Want)
}

// Record is one log line's fields as an ordered name-value mapping.
// Names alias the dialect's field list; values alias the token slice.
// A Record is never mutated after creation.
type Record struct {
	names  []string
	values []string
}

// Record zips the dialect's field names with the token sequence. The
// token count must match the dialect exactly.
func (f Format) Record(tokens []string) (Record, error) {
	names := f.Fields()
	if len(tokens) != len(names) {
		return Record{}, &MismatchError{Format: f, Want: len(names), Got: len(tokens)}
	}
	return Record{names: names, values: tokens}, nil
}

// Len returns the number of fields in the record.
func (r Record) Len() int {
	return len(r.names)
}

// Get returns the value of the named field, or "" if absent.
func (r Record) Get(name string) string {
	for i, n := range r.names {
		if n == name {
			return r.values[i]
		}
	}
	return ""
}

// AppendJSON serializes the record as a JSON object with keys in schema
// order. All values are JSON strings; numeric-looking fields are not
// coerced and quoted tokens keep their literal quote characters.
func (r Record) AppendJSON(buf *bytes.Buffer) {
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		// Field names are static identifiers, no escaping needed.
		buf.WriteByte('"')
		buf.WriteString(name)
		buf.WriteString(`":`)
		appendJSONString(buf, r.values[i])
	}
	buf.WriteByte('}')
}

// MarshalJSON implements json.Marshaler, preserving schema field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(r.names) * 24)
	r.AppendJSON(&buf)
	return buf.Bytes(), nil
}

const hexDigits = "0123456789abcdef"

// appendJSONString writes s as a JSON string literal. Only quote,
// backslash and control characters are escaped; no HTML escaping, so
// URLs and user agents round-trip byte for byte.
func appendJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		buf.WriteString(s[start:i])
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
	buf.WriteByte('"')
}
