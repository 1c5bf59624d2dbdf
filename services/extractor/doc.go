package extractor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
)

// minRun is the shortest printable run kept when the piece table is unusable.
const minRun = 4

// Offsets into the Word 97-2003 File Information Block.
const (
	fibIdent      = 0x0000
	fibFlags      = 0x000A
	fibCcpText    = 0x004C
	fibFcClx      = 0x01A2
	fibLcbClx     = 0x01A6
	fibMinSize    = 0x01AA
	wordIdent     = 0xA5EC
	flagTableStm  = 0x0200
	fcCompressed  = 0x40000000
	clxPrc        = 0x01
	clxPcdt       = 0x02
	pcdSize       = 8
	maxPieceChars = 1 << 24
)

var errNoPieceTable = errors.New("doc: no usable piece table")

// docText reads the WordDocument and table streams out of the compound file
// and returns the main document text. Other streams (summary information,
// embedded objects) are never looked at.
func docText(data []byte) (string, error) {
	r, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("doc: not a Word 97-2003 document: %w", err)
	}

	streams := make(map[string][]byte, 3)
	for entry, err := r.Next(); err == nil; entry, err = r.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			if len(entry.Path) > 0 {
				continue
			}
			b, err := io.ReadAll(entry)
			if err != nil {
				return "", fmt.Errorf("doc: read %s stream: %w", entry.Name, err)
			}
			streams[entry.Name] = b
		}
	}

	word, ok := streams["WordDocument"]
	if !ok {
		return "", errors.New("doc: WordDocument stream missing")
	}

	table := streams["0Table"]
	if len(word) > fibFlags+2 && binary.LittleEndian.Uint16(word[fibFlags:])&flagTableStm != 0 {
		table = streams["1Table"]
	}

	if text, err := pieceText(word, table); err == nil {
		return text, nil
	}
	return wordStreamRuns(word), nil
}

// pieceText follows the piece table to the first ccpText characters, the
// main body. Headers, footnotes and text boxes come after it and are skipped.
func pieceText(word, table []byte) (string, error) {
	if len(word) < fibMinSize || binary.LittleEndian.Uint16(word[fibIdent:]) != wordIdent {
		return "", errNoPieceTable
	}
	ccpText := int64(int32(binary.LittleEndian.Uint32(word[fibCcpText:])))
	fcClx := int64(binary.LittleEndian.Uint32(word[fibFcClx:]))
	lcbClx := int64(binary.LittleEndian.Uint32(word[fibLcbClx:]))
	if ccpText <= 0 || ccpText > maxPieceChars || lcbClx == 0 || fcClx+lcbClx > int64(len(table)) {
		return "", errNoPieceTable
	}

	plc, err := pieceDescriptors(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}
	n := (len(plc) - 4) / (4 + pcdSize)
	if n <= 0 || 4*(n+1)+pcdSize*n != len(plc) {
		return "", errNoPieceTable
	}

	var text []rune
	for i := 0; i < n; i++ {
		start := int64(binary.LittleEndian.Uint32(plc[4*i:]))
		end := int64(binary.LittleEndian.Uint32(plc[4*(i+1):]))
		if start >= ccpText {
			break
		}
		end = min(end, ccpText)
		if end <= start {
			continue
		}
		count := end - start

		pcd := plc[4*(n+1)+pcdSize*i:]
		fc := binary.LittleEndian.Uint32(pcd[2:])
		if fc&fcCompressed != 0 {
			off := int64(fc&^fcCompressed) / 2
			if off+count > int64(len(word)) {
				return "", errNoPieceTable
			}
			for _, b := range word[off : off+count] {
				text = append(text, charmap.Windows1252.DecodeByte(b))
			}
			continue
		}
		off := int64(fc)
		if off+2*count > int64(len(word)) {
			return "", errNoPieceTable
		}
		units := make([]uint16, count)
		for j := range units {
			units[j] = binary.LittleEndian.Uint16(word[off+2*int64(j):])
		}
		text = append(text, utf16.Decode(units)...)
	}
	return cleanWordText(text), nil
}

// pieceDescriptors skips the property modifiers in a Clx and returns the
// PlcPcd that follows them.
func pieceDescriptors(clx []byte) ([]byte, error) {
	for len(clx) > 0 {
		switch clx[0] {
		case clxPrc:
			if len(clx) < 3 {
				return nil, errNoPieceTable
			}
			size := int(int16(binary.LittleEndian.Uint16(clx[1:])))
			if size < 0 || 3+size > len(clx) {
				return nil, errNoPieceTable
			}
			clx = clx[3+size:]
		case clxPcdt:
			if len(clx) < 5 {
				return nil, errNoPieceTable
			}
			size := int(binary.LittleEndian.Uint32(clx[1:]))
			if 5+size > len(clx) {
				return nil, errNoPieceTable
			}
			return clx[5 : 5+size], nil
		default:
			return nil, errNoPieceTable
		}
	}
	return nil, errNoPieceTable
}

// cleanWordText turns Word's in-band control characters into plain text.
// Field instructions (between 0x13 and 0x14) are dropped and field results
// kept.
func cleanWordText(text []rune) string {
	var (
		sb    strings.Builder
		depth int
		code  []bool
	)
	for _, r := range text {
		switch r {
		case 0x13:
			depth++
			code = append(code, true)
			continue
		case 0x14:
			if depth > 0 {
				code[depth-1] = false
			}
			continue
		case 0x15:
			if depth > 0 {
				depth--
				code = code[:depth]
			}
			continue
		}
		if depth > 0 && code[depth-1] {
			continue
		}
		switch {
		case r == '\r' || r == 0x0b || r == 0x0c || r == 0x07:
			sb.WriteByte('\n')
		case r == '\t':
			sb.WriteByte('\t')
		case r == 0xa0:
			sb.WriteByte(' ')
		case r == 0x1e:
			sb.WriteByte('-')
		case unicode.IsControl(r) || r == utf8.RuneError:
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// wordStreamRuns is the fallback for documents whose piece table cannot be
// read: printable runs from the WordDocument stream only, in whichever of
// the two Word encodings yields more text.
func wordStreamRuns(word []byte) string {
	if len(word) > fibMinSize {
		word = word[fibMinSize:]
	}
	wide := printableRuns(decodeUTF16LE(word))
	narrow := printableRuns(decodeBytes(word))
	if len(wide) >= len(narrow) {
		return wide
	}
	return narrow
}

func decodeUTF16LE(data []byte) []rune {
	out := make([]rune, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		out = append(out, rune(uint16(data[i])|uint16(data[i+1])<<8))
	}
	return out
}

func decodeBytes(data []byte) []rune {
	out := make([]rune, 0, len(data))
	for _, b := range data {
		out = append(out, charmap.Windows1252.DecodeByte(b))
	}
	return out
}

func printableRuns(runes []rune) string {
	var (
		sb  strings.Builder
		run []rune
	)
	flush := func() {
		if len(strings.TrimSpace(string(run))) >= minRun {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(strings.TrimSpace(string(run)))
		}
		run = run[:0]
	}
	for _, r := range runes {
		switch {
		case r == '\r' || r == '\n' || r == 0x0b:
			flush()
		case r == '\t' || (unicode.IsPrint(r) && isTextRange(r)):
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()
	return sb.String()
}

// isTextRange limits runs to Latin, Greek, Cyrillic and general
// punctuation. Reading 8-bit text as UTF-16 otherwise yields long runs of
// CJK code points that would outscore the real text.
func isTextRange(r rune) bool {
	return r < 0x0250 ||
		(r >= 0x0370 && r <= 0x04ff) ||
		(r >= 0x2000 && r <= 0x206f)
}
