package encoder

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

const utf8BOM = "\ufeff"

// DetectEncoding detects the character encoding of the given bytes
func DetectEncoding(data []byte) (string, error) {
	if len(data) == 0 {
		return "UTF-8", nil
	}

	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil {
		return "", errors.Wrap(err, "failed to detect encoding")
	}

	return result.Charset, nil
}

// ConvertToUTF8 converts bytes from the given charset to UTF-8
func ConvertToUTF8(data []byte, charset string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	if charset == "UTF-8" || charset == "" {
		return strings.TrimPrefix(string(data), utf8BOM), nil
	}

	decoder := getDecoder(charset)
	if decoder == nil {
		if utf8.Valid(data) {
			return strings.TrimPrefix(string(data), utf8BOM), nil
		}
		return "", errors.Newf("unsupported charset %q", charset)
	}

	decoded, err := decoder.Bytes(data)
	if err != nil {
		return "", errors.Wrapf(err, "failed to decode from %s", charset)
	}

	return strings.TrimPrefix(string(decoded), utf8BOM), nil
}

// Decode detects the charset of data and returns it decoded to UTF-8 along
// with the detected charset name.
func Decode(data []byte) (string, string, error) {
	charset, err := DetectEncoding(data)
	if err != nil {
		return "", "", err
	}

	text, err := ConvertToUTF8(data, charset)
	if err != nil {
		return "", charset, err
	}

	return text, charset, nil
}

// getDecoder returns the appropriate decoder for the given charset
func getDecoder(charset string) *encoding.Decoder {
	switch charset {
	case "GB2312", "GB-2312", "GBK", "GB18030", "GB-18030":
		return simplifiedchinese.GB18030.NewDecoder()
	case "Big5", "BIG5":
		return traditionalchinese.Big5.NewDecoder()
	case "Shift_JIS", "SHIFT_JIS":
		return japanese.ShiftJIS.NewDecoder()
	case "EUC-JP":
		return japanese.EUCJP.NewDecoder()
	case "ISO-2022-JP":
		return japanese.ISO2022JP.NewDecoder()
	case "EUC-KR":
		return korean.EUCKR.NewDecoder()
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case "ISO-8859-1", "windows-1252":
		return charmap.Windows1252.NewDecoder()
	}

	// chardet reports the remaining single-byte charsets under their IANA
	// names, which the WHATWG index resolves.
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil
	}
	return enc.NewDecoder()
}
