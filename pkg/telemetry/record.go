// Package telemetry publishes experiment records over MQTT.
package telemetry

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/stepresp/pkg/host"
)

// Record is the wire form of a host.TelemetryRecord.
type Record struct {
	PeriodMs    int64           `protobuf:"varint,1,opt,name=period_ms,json=periodMs,proto3" json:"period_ms,omitempty"`
	Gains       []float64       `protobuf:"fixed64,2,rep,packed,name=gains,proto3" json:"gains,omitempty"`
	Setpoints   []int64         `protobuf:"varint,3,rep,packed,name=setpoints,proto3" json:"setpoints,omitempty"`
	Motors      []*MotorSamples `protobuf:"bytes,4,rep,name=motors,proto3" json:"motors,omitempty"`
	Station     string          `protobuf:"bytes,5,opt,name=station,proto3" json:"station,omitempty"`
	TimestampMs int64           `protobuf:"varint,6,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

// Reset implements proto.Message.
func (m *Record) Reset() { *m = Record{} }

// String implements proto.Message.
func (m *Record) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Record) ProtoMessage() {}

// MotorSamples is the telemetry of one motor.
type MotorSamples struct {
	Motor     uint32  `protobuf:"varint,1,opt,name=motor,proto3" json:"motor,omitempty"`
	Values    []int64 `protobuf:"zigzag64,2,rep,packed,name=values,proto3" json:"values,omitempty"`
	ElapsedMs []int64 `protobuf:"varint,3,rep,packed,name=elapsed_ms,json=elapsedMs,proto3" json:"elapsed_ms,omitempty"`
}

// Reset implements proto.Message.
func (m *MotorSamples) Reset() { *m = MotorSamples{} }

// String implements proto.Message.
func (m *MotorSamples) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*MotorSamples) ProtoMessage() {}

// FromRecord converts a host record taken by station at t.
func FromRecord(rec *host.TelemetryRecord, station string, t time.Time) *Record {
	m := &Record{
		PeriodMs:    rec.Experiment.PeriodMs,
		Gains:       rec.Experiment.Gains,
		Setpoints:   rec.Experiment.Setpoints,
		Station:     station,
		TimestampMs: t.UnixNano() / int64(time.Millisecond),
	}
	for n, s := range rec.Motors {
		m.Motors = append(m.Motors, &MotorSamples{
			Motor:     uint32(n),
			Values:    s.Values,
			ElapsedMs: s.ElapsedMs,
		})
	}
	return m
}

// HostRecord converts m back to a host record.
func (m *Record) HostRecord() *host.TelemetryRecord {
	rec := &host.TelemetryRecord{
		Experiment: host.Experiment{
			Gains:     m.Gains,
			Setpoints: m.Setpoints,
			PeriodMs:  m.PeriodMs,
		},
	}
	for _, s := range m.Motors {
		for int(s.Motor) >= len(rec.Motors) {
			rec.Motors = append(rec.Motors, host.Samples{})
		}
		rec.Motors[s.Motor] = host.Samples{Values: s.Values, ElapsedMs: s.ElapsedMs}
	}
	return rec
}

// Time returns when the record was taken.
func (m *Record) Time() time.Time {
	return time.Unix(0, m.TimestampMs*int64(time.Millisecond))
}

// Marshal encodes m.
func Marshal(m *Record) ([]byte, error) {
	return proto.Marshal(m)
}

// Unmarshal decodes a record.
func Unmarshal(data []byte) (*Record, error) {
	m := &Record{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
