package schema

import "bytes"

// utf8BOM is ignored at the start of a header line.
var utf8BOM = []byte("\xEF\xBB\xBF")

// Resolver maps a header line to a Schema.
type Resolver struct {
	// Names are the header texts to look for. The zero value means
	// DefaultNames.
	Names Names
	// Delimiter separates header fields. Zero means ','.
	Delimiter byte
}

// Resolve resolves header with DefaultNames and ','.
func Resolve(header []byte) (Schema, int, error) {
	return Resolver{}.Resolve(header)
}

// Resolve splits header once and records the position of every required
// name. Matching is exact and case-sensitive. When a name appears more than
// once the last occurrence wins. It returns the schema and the header's field
// count, or a *MissingColumnError for the first required column (in Column
// order) that was not found.
func (r Resolver) Resolve(header []byte) (Schema, int, error) {
	names := r.Names
	if names == (Names{}) {
		names = DefaultNames
	}
	sep := r.Delimiter
	if sep == 0 {
		sep = ','
	}
	header = bytes.TrimPrefix(header, utf8BOM)

	var s Schema
	for i := range s.idx {
		s.idx[i] = -1
	}

	fields := 0
	for {
		end := bytes.IndexByte(header, sep)
		col := header
		if end >= 0 {
			col = header[:end]
		}
		for c := range names {
			if string(col) == names[c] {
				s.idx[c] = fields
			}
		}
		fields++
		if end < 0 {
			break
		}
		header = header[end+1:]
	}

	for c, i := range s.idx {
		if i < 0 {
			return Schema{}, fields, &MissingColumnError{Column: Column(c), Name: names[c]}
		}
	}
	return s, fields, nil
}
