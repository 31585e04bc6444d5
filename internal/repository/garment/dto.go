package garment

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"

	"github.com/wabenzi/prethrift/internal/domain/attribute"
	domgar "github.com/wabenzi/prethrift/internal/domain/garment"
)

// Reserved hash fields. Attribute families map to plain fields named after
// the family so the FT index can filter on them; everything else lives under
// a __ prefix to stay out of the taxonomy namespace.
const (
	fieldTitle       = "title"
	fieldBrand       = "brand"
	fieldPrice       = "price"
	fieldCurrency    = "__currency"
	fieldImagePath   = "__image_path"
	fieldDescription = "__description"
	fieldAttrs       = "__attrs"
	fieldExtras      = "__extras"
	fieldTextVec     = "__text_vec"
	fieldImageVec    = "__image_vec"
)

// attrDTO is the JSON shape of one taxonomy assignment inside __attrs.
// The per-family tag fields only carry the value; confidence and source
// survive the round trip through this record.
type attrDTO struct {
	Family     string  `json:"family"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// garmentToHash converts a domain Garment into a flat map[string]string for HSET.
func garmentToHash(g *domgar.Garment) map[string]string {
	attrs := g.Attributes()
	m := make(map[string]string, 10+len(attrs))

	m[fieldTitle] = g.Title()
	m[fieldBrand] = g.Brand()
	m[fieldPrice] = strconv.FormatFloat(g.Price(), 'f', -1, 64)
	m[fieldCurrency] = g.Currency()
	m[fieldImagePath] = g.ImagePath()
	m[fieldDescription] = g.Description()

	for _, a := range attrs {
		m[string(a.Family())] = a.Value()
	}
	if len(attrs) > 0 {
		dtos := make([]attrDTO, len(attrs))
		for i, a := range attrs {
			dtos[i] = attrDTO{
				Family:     string(a.Family()),
				Value:      a.Value(),
				Confidence: a.Confidence(),
				Source:     string(a.Source()),
			}
		}
		if data, err := json.Marshal(dtos); err == nil {
			m[fieldAttrs] = string(data)
		}
	}

	if extras := g.Extras(); len(extras) > 0 {
		if data, err := json.Marshal(extras); err == nil {
			m[fieldExtras] = string(data)
		}
	}

	if v := g.TextVector(); len(v) > 0 {
		m[fieldTextVec] = vectorToBytes(v)
	}
	if v := g.ImageVector(); len(v) > 0 {
		m[fieldImageVec] = vectorToBytes(v)
	}

	return m
}

// garmentFromHash converts a flat hash map back into a domain Garment.
func garmentFromHash(id string, m map[string]string) domgar.Garment {
	price, _ := strconv.ParseFloat(m[fieldPrice], 64)

	var extras map[string]string
	if raw := m[fieldExtras]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &extras)
	}

	return domgar.Reconstruct(
		id,
		m[fieldTitle],
		m[fieldBrand],
		price,
		m[fieldCurrency],
		m[fieldImagePath],
		m[fieldDescription],
		parseAttrs(m[fieldAttrs]),
		extras,
		bytesToVector(m[fieldTextVec]),
		bytesToVector(m[fieldImageVec]),
	)
}

// parseAttrs hydrates assignments from the __attrs JSON record. Entries that
// no longer fit the taxonomy are skipped rather than failing the read.
func parseAttrs(raw string) []attribute.Assignment {
	if raw == "" {
		return nil
	}
	var dtos []attrDTO
	if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
		return nil
	}

	out := make([]attribute.Assignment, 0, len(dtos))
	for _, d := range dtos {
		family := attribute.Family(d.Family)
		if !family.IsValid() {
			continue
		}
		out = append(out, attribute.Reconstruct(
			family, d.Value, d.Confidence, attribute.Source(d.Source),
		))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	if s == "" {
		return nil
	}
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
