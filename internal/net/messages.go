package net

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"njord/internal/asset"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrInvalidAmount      = errors.New("invalid decimal amount")
)

// MessageType tags a client request.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewLimitOrder
	NewMarketOrder
	CloseOrder
)

// ReportType tags a server report.
type ReportType byte

const (
	OrderPlacedReport ReportType = iota
	OrderClosedReport
	MarketResultReport
	ErrorReport
)

// Wire format: big-endian, one message per write. Every request starts with
// a 2-byte type; strings (asset classes, decimal amounts) are 2-byte length
// prefixed. Decimals travel in their canonical string form so no precision
// is lost on the wire.

type Message interface {
	GetType() MessageType
	Serialize() []byte
}

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

// NewLimitOrderMessage deposits funds at a limit price.
type NewLimitOrderMessage struct {
	BaseMessage
	Class  asset.Class
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// NewMarketOrderMessage deposits funds for immediate execution.
type NewMarketOrderMessage struct {
	BaseMessage
	Class  asset.Class
	Amount decimal.Decimal
}

// CloseOrderMessage settles the order identified by OrderKey. The gateway
// holds the ownership token on the caller's behalf.
type CloseOrderMessage struct {
	BaseMessage
	OrderKey uuid.UUID
}

// --- encoding helpers -------------------------------------------------------

func appendUint16(buf []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(buf, v)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// reader walks a received buffer, latching the first error.
type reader struct {
	data []byte
	err  error
}

func (r *reader) readUint16() uint16 {
	if r.err != nil {
		return 0
	}
	if len(r.data) < 2 {
		r.err = ErrMessageTooShort
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[:2])
	r.data = r.data[2:]
	return v
}

func (r *reader) readByte() byte {
	if r.err != nil {
		return 0
	}
	if len(r.data) < 1 {
		r.err = ErrMessageTooShort
		return 0
	}
	b := r.data[0]
	r.data = r.data[1:]
	return b
}

func (r *reader) readString() string {
	n := int(r.readUint16())
	if r.err != nil {
		return ""
	}
	if len(r.data) < n {
		r.err = ErrMessageTooShort
		return ""
	}
	s := string(r.data[:n])
	r.data = r.data[n:]
	return s
}

func (r *reader) readDecimal() decimal.Decimal {
	s := r.readString()
	if r.err != nil {
		return decimal.Decimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		r.err = ErrInvalidAmount
		return decimal.Decimal{}
	}
	return d
}

func (r *reader) readUUID() uuid.UUID {
	if r.err != nil {
		return uuid.UUID{}
	}
	if len(r.data) < 16 {
		r.err = ErrMessageTooShort
		return uuid.UUID{}
	}
	var key uuid.UUID
	copy(key[:], r.data[:16])
	r.data = r.data[16:]
	return key
}

// --- requests ---------------------------------------------------------------

// ParseMessage decodes one client request.
func ParseMessage(msg []byte) (Message, error) {
	r := &reader{data: msg}
	typeOf := MessageType(r.readUint16())
	if r.err != nil {
		return nil, r.err
	}

	switch typeOf {
	case NewLimitOrder:
		m := NewLimitOrderMessage{BaseMessage: BaseMessage{TypeOf: typeOf}}
		m.Class = asset.Class(r.readString())
		m.Amount = r.readDecimal()
		m.Price = r.readDecimal()
		return m, r.err
	case NewMarketOrder:
		m := NewMarketOrderMessage{BaseMessage: BaseMessage{TypeOf: typeOf}}
		m.Class = asset.Class(r.readString())
		m.Amount = r.readDecimal()
		return m, r.err
	case CloseOrder:
		m := CloseOrderMessage{BaseMessage: BaseMessage{TypeOf: typeOf}}
		m.OrderKey = r.readUUID()
		return m, r.err
	default:
		return nil, ErrInvalidMessageType
	}
}

func (m NewLimitOrderMessage) Serialize() []byte {
	buf := appendUint16(nil, uint16(NewLimitOrder))
	buf = appendString(buf, string(m.Class))
	buf = appendString(buf, m.Amount.String())
	buf = appendString(buf, m.Price.String())
	return buf
}

func (m NewMarketOrderMessage) Serialize() []byte {
	buf := appendUint16(nil, uint16(NewMarketOrder))
	buf = appendString(buf, string(m.Class))
	buf = appendString(buf, m.Amount.String())
	return buf
}

func (m CloseOrderMessage) Serialize() []byte {
	buf := appendUint16(nil, uint16(CloseOrder))
	return append(buf, m.OrderKey[:]...)
}

// --- reports ----------------------------------------------------------------

// FundsEntry is a class/amount pair on the wire.
type FundsEntry struct {
	Class  asset.Class
	Amount decimal.Decimal
}

func entryOf(f asset.Funds) FundsEntry {
	return FundsEntry{Class: f.Class(), Amount: f.Amount()}
}

// Report is the server's answer to any request.
type Report struct {
	TypeOf ReportType

	// OrderPlacedReport
	OrderKey uuid.UUID

	// OrderClosedReport
	Refund FundsEntry
	Traded FundsEntry

	// MarketResultReport
	Unspent     FundsEntry
	HasProceeds bool
	Proceeds    FundsEntry

	// ErrorReport
	Err string
}

func appendEntry(buf []byte, e FundsEntry) []byte {
	buf = appendString(buf, string(e.Class))
	return appendString(buf, e.Amount.String())
}

func (r *reader) readEntry() FundsEntry {
	e := FundsEntry{Class: asset.Class(r.readString())}
	e.Amount = r.readDecimal()
	return e
}

// Serialize converts the report to be sent on the wire.
func (rep Report) Serialize() []byte {
	buf := []byte{byte(rep.TypeOf)}
	switch rep.TypeOf {
	case OrderPlacedReport:
		buf = append(buf, rep.OrderKey[:]...)
	case OrderClosedReport:
		buf = appendEntry(buf, rep.Refund)
		buf = appendEntry(buf, rep.Traded)
	case MarketResultReport:
		buf = appendEntry(buf, rep.Unspent)
		if rep.HasProceeds {
			buf = append(buf, 1)
			buf = appendEntry(buf, rep.Proceeds)
		} else {
			buf = append(buf, 0)
		}
	case ErrorReport:
		buf = appendString(buf, rep.Err)
	}
	return buf
}

// ParseReport decodes one server report on the client side.
func ParseReport(msg []byte) (Report, error) {
	r := &reader{data: msg}
	rep := Report{TypeOf: ReportType(r.readByte())}
	if r.err != nil {
		return Report{}, r.err
	}

	switch rep.TypeOf {
	case OrderPlacedReport:
		rep.OrderKey = r.readUUID()
	case OrderClosedReport:
		rep.Refund = r.readEntry()
		rep.Traded = r.readEntry()
	case MarketResultReport:
		rep.Unspent = r.readEntry()
		rep.HasProceeds = r.readByte() == 1
		if rep.HasProceeds {
			rep.Proceeds = r.readEntry()
		}
	case ErrorReport:
		rep.Err = r.readString()
	default:
		return Report{}, ErrInvalidMessageType
	}
	if r.err != nil {
		return Report{}, r.err
	}
	return rep, nil
}
