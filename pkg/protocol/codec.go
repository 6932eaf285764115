package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/robocup-autoref/autoref/pkg/core"
)

// MaxRecordSize bounds the length prefix accepted from the peer.
const MaxRecordSize = 1 << 20

var (
	// ErrTruncated is returned when a record ends inside a field.
	ErrTruncated = errors.New("protocol: truncated record")
	// ErrTooLarge is returned for a length prefix above MaxRecordSize.
	ErrTooLarge = errors.New("protocol: record too large")
)

// field numbers
const (
	fSigToken    protowire.Number = 1
	fSigPKCS1v15 protowire.Number = 2

	fRegIdentifier protowire.Number = 1
	fRegSignature  protowire.Number = 2

	fToCtrlSignature   protowire.Number = 1
	fToCtrlGameEvent   protowire.Number = 2
	fToCtrlCommand     protowire.Number = 3
	fToCtrlConfigDelta protowire.Number = 4
	fToCtrlDesignation protowire.Number = 5

	fFromCtrlReply       protowire.Number = 1
	fFromCtrlConfigDelta protowire.Number = 2

	fReplyStatus    protowire.Number = 1
	fReplyReason    protowire.Number = 2
	fReplyNextToken protowire.Number = 3

	fDeltaEntry     protowire.Number = 1
	fEntryEventType protowire.Number = 1
	fEntryAccept    protowire.Number = 2
	fEventType      protowire.Number = 1
	fEventByTeam    protowire.Number = 2
	fEventBot       protowire.Number = 3
	fEventLocation  protowire.Number = 4
	fEventSpeed     protowire.Number = 5
	fEventDetails   protowire.Number = 6
	fEventTimestamp protowire.Number = 7
	fBotNumber      protowire.Number = 1
	fBotTeam        protowire.Number = 2
	fVecX           protowire.Number = 1
	fVecY           protowire.Number = 2
)

// WriteRecord writes one length-delimited record.
func WriteRecord(w io.Writer, payload []byte) error {
	buf := protowire.AppendVarint(make([]byte, 0, len(payload)+binary.MaxVarintLen32), uint64(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// ReadRecord reads one length-delimited record.
func ReadRecord(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading record body: %w", err)
	}
	return buf, nil
}

// --- encoding ---

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func marshalSignature(s *Signature) []byte {
	var b []byte
	b = appendString(b, fSigToken, s.Token)
	b = appendBytes(b, fSigPKCS1v15, s.PKCS1v15)
	return b
}

func marshalVec(v core.Vec2) []byte {
	var b []byte
	b = appendDouble(b, fVecX, v.X)
	b = appendDouble(b, fVecY, v.Y)
	return b
}

func marshalGameEvent(e *core.GameEvent) []byte {
	var b []byte
	b = appendVarint(b, fEventType, uint64(e.Type))
	b = appendVarint(b, fEventByTeam, uint64(e.ByTeam))
	if e.Bot != nil {
		var bot []byte
		bot = appendVarint(bot, fBotNumber, uint64(e.Bot.Number))
		bot = appendVarint(bot, fBotTeam, uint64(e.Bot.Team))
		b = appendMessage(b, fEventBot, bot)
	}
	if e.Location != nil {
		b = appendMessage(b, fEventLocation, marshalVec(*e.Location))
	}
	if e.Speed != 0 {
		b = appendDouble(b, fEventSpeed, e.Speed)
	}
	b = appendString(b, fEventDetails, e.Details)
	if ts := unixMicro(e.Timestamp); ts != 0 {
		b = appendVarint(b, fEventTimestamp, protowire.EncodeZigZag(ts))
	}
	return b
}

func marshalConfigDelta(d *ConfigDelta) []byte {
	var b []byte
	for _, e := range d.Entries {
		var entry []byte
		entry = appendVarint(entry, fEntryEventType, uint64(e.EventType))
		entry = appendVarint(entry, fEntryAccept, protowire.EncodeBool(e.Accept))
		b = appendMessage(b, fDeltaEntry, entry)
	}
	return b
}

// Marshal serializes the registration record.
func (r *Registration) Marshal() []byte {
	var b []byte
	b = appendString(b, fRegIdentifier, r.Identifier)
	if r.Signature != nil {
		b = appendMessage(b, fRegSignature, marshalSignature(r.Signature))
	}
	return b
}

// Marshal serializes the outbound record. The command field is only
// written when a command is attached.
func (m *AutoRefToController) Marshal() []byte {
	var b []byte
	if m.Signature != nil {
		b = appendMessage(b, fToCtrlSignature, marshalSignature(m.Signature))
	}
	if m.GameEvent != nil {
		b = appendMessage(b, fToCtrlGameEvent, marshalGameEvent(m.GameEvent))
	}
	if m.Command != core.CommandNone {
		b = appendVarint(b, fToCtrlCommand, uint64(m.Command))
	}
	if m.ConfigDelta != nil {
		b = appendMessage(b, fToCtrlConfigDelta, marshalConfigDelta(m.ConfigDelta))
	}
	if m.Designation != nil {
		b = appendMessage(b, fToCtrlDesignation, marshalVec(*m.Designation))
	}
	return b
}

// Marshal serializes an inbound record. Used by test controllers.
func (m *ControllerToAutoRef) Marshal() []byte {
	var b []byte
	if m.Reply != nil {
		var r []byte
		r = appendVarint(r, fReplyStatus, uint64(m.Reply.Status))
		r = appendString(r, fReplyReason, m.Reply.Reason)
		r = appendString(r, fReplyNextToken, m.Reply.NextToken)
		b = appendMessage(b, fFromCtrlReply, r)
	}
	if m.ConfigDelta != nil {
		b = appendMessage(b, fFromCtrlConfigDelta, marshalConfigDelta(m.ConfigDelta))
	}
	return b
}

// --- decoding ---

// fieldFunc handles one decoded field and returns the bytes consumed, or a
// negative protowire error code.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) int

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]
		m := fn(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) int {
	return protowire.ConsumeFieldValue(num, typ, b)
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return -1
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) int {
	if typ != protowire.Fixed64Type {
		return -1
	}
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = math.Float64frombits(v)
	}
	return n
}

// consumeMessage hands the nested message bytes to decode.
func consumeMessage(typ protowire.Type, b []byte, decode func([]byte) error) int {
	if typ != protowire.BytesType {
		return -1
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n
	}
	if err := decode(v); err != nil {
		return -1
	}
	return n
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return -1
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func unmarshalSignature(b []byte) (*Signature, error) {
	s := &Signature{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fSigToken:
			return consumeString(typ, b, &s.Token)
		case fSigPKCS1v15:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				s.PKCS1v15 = append([]byte(nil), v...)
			}
			return n
		default:
			return skip(num, typ, b)
		}
	})
	return s, err
}

func unmarshalVec(b []byte) (core.Vec2, error) {
	var v core.Vec2
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fVecX:
			return consumeDouble(typ, b, &v.X)
		case fVecY:
			return consumeDouble(typ, b, &v.Y)
		default:
			return skip(num, typ, b)
		}
	})
	return v, err
}

func unmarshalGameEvent(b []byte) (*core.GameEvent, error) {
	e := &core.GameEvent{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		var u uint64
		switch num {
		case fEventType:
			n := consumeVarint(typ, b, &u)
			e.Type = core.ViolationType(u)
			return n
		case fEventByTeam:
			n := consumeVarint(typ, b, &u)
			e.ByTeam = core.TeamColor(u)
			return n
		case fEventBot:
			return consumeMessage(typ, b, func(m []byte) error {
				bot := &core.BotID{}
				err := walk(m, func(num protowire.Number, typ protowire.Type, b []byte) int {
					var v uint64
					switch num {
					case fBotNumber:
						n := consumeVarint(typ, b, &v)
						bot.Number = int(v)
						return n
					case fBotTeam:
						n := consumeVarint(typ, b, &v)
						bot.Team = core.TeamColor(v)
						return n
					default:
						return skip(num, typ, b)
					}
				})
				e.Bot = bot
				return err
			})
		case fEventLocation:
			return consumeMessage(typ, b, func(m []byte) error {
				v, err := unmarshalVec(m)
				e.Location = &v
				return err
			})
		case fEventSpeed:
			return consumeDouble(typ, b, &e.Speed)
		case fEventDetails:
			return consumeString(typ, b, &e.Details)
		case fEventTimestamp:
			n := consumeVarint(typ, b, &u)
			e.Timestamp = fromUnixMicro(protowire.DecodeZigZag(u))
			return n
		default:
			return skip(num, typ, b)
		}
	})
	return e, err
}

func unmarshalConfigDelta(b []byte) (*ConfigDelta, error) {
	d := &ConfigDelta{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fDeltaEntry {
			return skip(num, typ, b)
		}
		return consumeMessage(typ, b, func(m []byte) error {
			var entry ConfigEntry
			err := walk(m, func(num protowire.Number, typ protowire.Type, b []byte) int {
				var v uint64
				switch num {
				case fEntryEventType:
					n := consumeVarint(typ, b, &v)
					entry.EventType = core.ViolationType(v)
					return n
				case fEntryAccept:
					n := consumeVarint(typ, b, &v)
					entry.Accept = protowire.DecodeBool(v)
					return n
				default:
					return skip(num, typ, b)
				}
			})
			d.Entries = append(d.Entries, entry)
			return err
		})
	})
	return d, err
}

// UnmarshalRegistration decodes a registration record.
func UnmarshalRegistration(b []byte) (*Registration, error) {
	r := &Registration{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fRegIdentifier:
			return consumeString(typ, b, &r.Identifier)
		case fRegSignature:
			return consumeMessage(typ, b, func(m []byte) error {
				s, err := unmarshalSignature(m)
				r.Signature = s
				return err
			})
		default:
			return skip(num, typ, b)
		}
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UnmarshalAutoRefToController decodes an outbound record.
func UnmarshalAutoRefToController(b []byte) (*AutoRefToController, error) {
	m := &AutoRefToController{Command: core.CommandNone}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fToCtrlSignature:
			return consumeMessage(typ, b, func(raw []byte) error {
				s, err := unmarshalSignature(raw)
				m.Signature = s
				return err
			})
		case fToCtrlGameEvent:
			return consumeMessage(typ, b, func(raw []byte) error {
				e, err := unmarshalGameEvent(raw)
				m.GameEvent = e
				return err
			})
		case fToCtrlCommand:
			var v uint64
			n := consumeVarint(typ, b, &v)
			m.Command = core.Command(v)
			return n
		case fToCtrlConfigDelta:
			return consumeMessage(typ, b, func(raw []byte) error {
				d, err := unmarshalConfigDelta(raw)
				m.ConfigDelta = d
				return err
			})
		case fToCtrlDesignation:
			return consumeMessage(typ, b, func(raw []byte) error {
				v, err := unmarshalVec(raw)
				m.Designation = &v
				return err
			})
		default:
			return skip(num, typ, b)
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalControllerToAutoRef decodes an inbound record.
func UnmarshalControllerToAutoRef(b []byte) (*ControllerToAutoRef, error) {
	m := &ControllerToAutoRef{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fFromCtrlReply:
			return consumeMessage(typ, b, func(raw []byte) error {
				r := &ControllerReply{}
				err := walk(raw, func(num protowire.Number, typ protowire.Type, b []byte) int {
					switch num {
					case fReplyStatus:
						var v uint64
						n := consumeVarint(typ, b, &v)
						r.Status = StatusCode(v)
						return n
					case fReplyReason:
						return consumeString(typ, b, &r.Reason)
					case fReplyNextToken:
						return consumeString(typ, b, &r.NextToken)
					default:
						return skip(num, typ, b)
					}
				})
				m.Reply = r
				return err
			})
		case fFromCtrlConfigDelta:
			return consumeMessage(typ, b, func(raw []byte) error {
				d, err := unmarshalConfigDelta(raw)
				m.ConfigDelta = d
				return err
			})
		default:
			return skip(num, typ, b)
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
