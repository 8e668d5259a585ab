package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Badger key layout. Components are separated by 0x00. Inside a component
// 0x00 is written as 0x01 0x01 and 0x01 as 0x01 0x02, so the separator never
// appears in component bytes and byte order still follows string order.
//
//	base:  "t:" table 0x00 pk 0x00 sk
//	index: "i:" table 0x00 index 0x00 indexPK 0x00 indexSK 0x00 pk 0x00 sk
//
// Index entries carry the base primary key so two items with equal index
// keys never collide.

const (
	keySeparator byte = 0x00
	escapeMarker byte = 0x01
)

var (
	basePrefix  = []byte("t:")
	indexPrefix = []byte("i:")
)

func escapeComponent(s string) []byte {
	b := []byte(s)
	if bytes.IndexByte(b, keySeparator) < 0 && bytes.IndexByte(b, escapeMarker) < 0 {
		return b
	}
	out := make([]byte, 0, len(b)+4)
	for _, c := range b {
		switch c {
		case keySeparator:
			out = append(out, escapeMarker, 0x01)
		case escapeMarker:
			out = append(out, escapeMarker, 0x02)
		default:
			out = append(out, c)
		}
	}
	return out
}

func joinKey(prefix []byte, components ...string) []byte {
	var buf bytes.Buffer
	buf.Write(prefix)
	for i, c := range components {
		if i > 0 {
			buf.WriteByte(keySeparator)
		}
		buf.Write(escapeComponent(c))
	}
	return buf.Bytes()
}

func baseKey(table string, key Key) []byte {
	return joinKey(basePrefix, table, key.PK, key.SK)
}

func indexKey(table string, idx IndexDefinition, indexPK, indexSK string, key Key) []byte {
	return joinKey(indexPrefix, table, idx.Name, indexPK, indexSK, key.PK, key.SK)
}

// basePartitionPrefix covers every item of one base-table partition whose
// sort key starts with sortPrefix.
func basePartitionPrefix(table, pk, sortPrefix string) []byte {
	p := joinKey(basePrefix, table, pk)
	p = append(p, keySeparator)
	return append(p, escapeComponent(sortPrefix)...)
}

// indexPartitionPrefix covers every entry of one index partition whose index
// sort key starts with sortPrefix.
func indexPartitionPrefix(table, index, indexPK, sortPrefix string) []byte {
	p := joinKey(indexPrefix, table, index, indexPK)
	p = append(p, keySeparator)
	return append(p, escapeComponent(sortPrefix)...)
}

// incrementBytes returns the smallest key greater than every key with the
// given prefix, used to seek reverse iterators.
func incrementBytes(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return append(out, 0xFF)
}

// storedValue is the JSON form of an AttributeValue inside Badger.
type storedValue struct {
	T    string                 `json:"t"`
	S    string                 `json:"s,omitempty"`
	B    []byte                 `json:"b,omitempty"`
	BOOL bool                   `json:"bool,omitempty"`
	SS   []string               `json:"ss,omitempty"`
	BS   [][]byte               `json:"bs,omitempty"`
	L    []storedValue          `json:"l,omitempty"`
	M    map[string]storedValue `json:"m,omitempty"`
}

func toStored(av types.AttributeValue) (storedValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return storedValue{T: "S", S: v.Value}, nil
	case *types.AttributeValueMemberN:
		return storedValue{T: "N", S: v.Value}, nil
	case *types.AttributeValueMemberB:
		return storedValue{T: "B", B: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return storedValue{T: "BOOL", BOOL: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return storedValue{T: "NULL"}, nil
	case *types.AttributeValueMemberSS:
		return storedValue{T: "SS", SS: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return storedValue{T: "NS", SS: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return storedValue{T: "BS", BS: v.Value}, nil
	case *types.AttributeValueMemberL:
		list := make([]storedValue, 0, len(v.Value))
		for _, e := range v.Value {
			sv, err := toStored(e)
			if err != nil {
				return storedValue{}, err
			}
			list = append(list, sv)
		}
		return storedValue{T: "L", L: list}, nil
	case *types.AttributeValueMemberM:
		m, err := toStoredMap(v.Value)
		if err != nil {
			return storedValue{}, err
		}
		return storedValue{T: "M", M: m}, nil
	default:
		return storedValue{}, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func toStoredMap(item map[string]types.AttributeValue) (map[string]storedValue, error) {
	out := make(map[string]storedValue, len(item))
	for k, v := range item {
		sv, err := toStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		out[k] = sv
	}
	return out, nil
}

func fromStored(sv storedValue) (types.AttributeValue, error) {
	switch sv.T {
	case "S":
		return &types.AttributeValueMemberS{Value: sv.S}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sv.S}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sv.B}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sv.BOOL}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sv.SS}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sv.SS}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sv.BS}, nil
	case "L":
		list := make([]types.AttributeValue, 0, len(sv.L))
		for _, e := range sv.L {
			av, err := fromStored(e)
			if err != nil {
				return nil, err
			}
			list = append(list, av)
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	case "M":
		m, err := fromStoredMap(sv.M)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("unknown stored attribute type %q", sv.T)
	}
}

func fromStoredMap(m map[string]storedValue) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		av, err := fromStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func serializeItem(item Item) ([]byte, error) {
	m, err := toStoredMap(item)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func deserializeItem(data []byte) (Item, error) {
	var m map[string]storedValue
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return fromStoredMap(m)
}

func stringValue(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}
