package bmapi

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// fieldPath - путь до вложенного значения внутри attributes.
type fieldPath []string

var (
	nameField    = fieldPath{"name"}
	statusField  = fieldPath{"status"}
	playersField = fieldPath{"players"}

	// пробуются по порядку, побеждает первая непустая строка
	mapFields = []fieldPath{
		{"details", "map"},
		{"details", "reforger", "scenarioName"},
	}
	queueField = fieldPath{"details", "squad_publicQueue"}
)

// object - динамический JSON-объект. У каждой игры свой набор ключей в
// details, а у соседних полей бывает не тот тип, поэтому схемы нет.
type object struct {
	s *structpb.Struct
}

// decodeObject не падает на содержимом: всё, что не JSON-объект, дает
// ok == false.
func decodeObject(raw []byte) (object, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return object{}, false
	}
	var s structpb.Struct
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(raw, &s); err != nil {
		return object{}, false
	}
	return object{s: &s}, true
}

// lookup считает null отсутствующим значением.
func (o object) lookup(p fieldPath) (*structpb.Value, bool) {
	if o.s == nil || len(p) == 0 {
		return nil, false
	}
	cur := o.s
	for i, key := range p {
		v, ok := cur.GetFields()[key]
		if !ok || v == nil {
			return nil, false
		}
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
			return nil, false
		}
		if i == len(p)-1 {
			return v, true
		}
		cur = v.GetStructValue()
		if cur == nil {
			return nil, false
		}
	}
	return nil, false
}

// str возвращает строку по пути; значение другого типа - как будто его нет.
func (o object) str(p fieldPath) string {
	v, ok := o.lookup(p)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

func (o object) firstString(paths []fieldPath) (string, bool) {
	for _, p := range paths {
		if s := o.str(p); s != "" {
			return s, true
		}
	}
	return "", false
}

// integer принимает JSON-число (в т.ч. 12.0) или строку с числом.
func (o object) integer(p fieldPath) (int, bool) {
	v, ok := o.lookup(p)
	if !ok {
		return 0, false
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return 0, false
		}
		return int(k.NumberValue), true
	case *structpb.Value_StringValue:
		raw := strings.TrimSpace(k.StringValue)
		if n, err := strconv.Atoi(raw); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// attributes - data.attributes одного сервера.
type attributes struct {
	object
}

func (a attributes) name() string   { return a.str(nameField) }
func (a attributes) status() string { return a.str(statusField) }

// players: отсутствующее или нечисловое значение дает 0.
func (a attributes) players() int {
	n, _ := a.integer(playersField)
	return max(n, 0)
}
