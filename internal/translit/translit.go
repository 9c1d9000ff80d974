// Package translit converts the katakana names found on entry pages into an
// ASCII romaji reading used as the pronunciation index term. The mapping is
// modified Hepburn with long vowels written as doubled letters rather than
// macrons, since the reading feeds a search index that users type on an ASCII
// keyboard.
package translit

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// digraphs maps two-rune katakana sequences. Checked before single runes.
var digraphs = map[string]string{
	"キャ": "kya", "キュ": "kyu", "キョ": "kyo",
	"シャ": "sha", "シュ": "shu", "ショ": "sho", "シェ": "she",
	"チャ": "cha", "チュ": "chu", "チョ": "cho", "チェ": "che",
	"ニャ": "nya", "ニュ": "nyu", "ニョ": "nyo",
	"ヒャ": "hya", "ヒュ": "hyu", "ヒョ": "hyo",
	"ミャ": "mya", "ミュ": "myu", "ミョ": "myo",
	"リャ": "rya", "リュ": "ryu", "リョ": "ryo",
	"ギャ": "gya", "ギュ": "gyu", "ギョ": "gyo",
	"ジャ": "ja", "ジュ": "ju", "ジョ": "jo", "ジェ": "je",
	"ビャ": "bya", "ビュ": "byu", "ビョ": "byo",
	"ピャ": "pya", "ピュ": "pyu", "ピョ": "pyo",
	"ティ": "ti", "トゥ": "tu", "テュ": "tyu",
	"ディ": "di", "ドゥ": "du", "デュ": "dyu",
	"ファ": "fa", "フィ": "fi", "フェ": "fe", "フォ": "fo", "フュ": "fyu",
	"ウィ": "wi", "ウェ": "we", "ウォ": "wo",
	"ヴァ": "va", "ヴィ": "vi", "ヴェ": "ve", "ヴォ": "vo",
	"イェ": "ye",
	"ツァ": "tsa", "ツィ": "tsi", "ツェ": "tse", "ツォ": "tso",
}

var monographs = map[rune]string{
	'ア': "a", 'イ': "i", 'ウ': "u", 'エ': "e", 'オ': "o",
	'カ': "ka", 'キ': "ki", 'ク': "ku", 'ケ': "ke", 'コ': "ko",
	'サ': "sa", 'シ': "shi", 'ス': "su", 'セ': "se", 'ソ': "so",
	'タ': "ta", 'チ': "chi", 'ツ': "tsu", 'テ': "te", 'ト': "to",
	'ナ': "na", 'ニ': "ni", 'ヌ': "nu", 'ネ': "ne", 'ノ': "no",
	'ハ': "ha", 'ヒ': "hi", 'フ': "fu", 'ヘ': "he", 'ホ': "ho",
	'マ': "ma", 'ミ': "mi", 'ム': "mu", 'メ': "me", 'モ': "mo",
	'ヤ': "ya", 'ユ': "yu", 'ヨ': "yo",
	'ラ': "ra", 'リ': "ri", 'ル': "ru", 'レ': "re", 'ロ': "ro",
	'ワ': "wa", 'ヲ': "wo", 'ン': "n",
	'ガ': "ga", 'ギ': "gi", 'グ': "gu", 'ゲ': "ge", 'ゴ': "go",
	'ザ': "za", 'ジ': "ji", 'ズ': "zu", 'ゼ': "ze", 'ゾ': "zo",
	'ダ': "da", 'ヂ': "ji", 'ヅ': "zu", 'デ': "de", 'ド': "do",
	'バ': "ba", 'ビ': "bi", 'ブ': "bu", 'ベ': "be", 'ボ': "bo",
	'パ': "pa", 'ピ': "pi", 'プ': "pu", 'ペ': "pe", 'ポ': "po",
	'ヴ': "vu",
	'ァ': "a", 'ィ': "i", 'ゥ': "u", 'ェ': "e", 'ォ': "o",
	'ャ': "ya", 'ュ': "yu", 'ョ': "yo", 'ヮ': "wa",
	'・': " ", '　': " ",
}

// HasKana reports whether s contains katakana (after width folding), i.e.
// whether a reading can be derived at all.
func HasKana(s string) bool {
	for _, r := range norm.NFKC.String(s) {
		if unicode.In(r, unicode.Katakana) {
			return true
		}
	}
	return false
}

// Romaji converts katakana in s to its romaji reading. Runes outside the
// mapping (kanji, latin, symbols) pass through unchanged. Half-width katakana
// is folded to full width first.
func Romaji(s string) string {
	runes := []rune(norm.NFKC.String(s))
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		// Sokuon doubles the following consonant; Hepburn writes っち as tchi.
		if r == 'ッ' {
			next := nextSyllable(runes, i+1)
			if next != "" {
				if strings.HasPrefix(next, "ch") {
					b.WriteString("t")
				} else if c := next[0]; c != 'a' && c != 'i' && c != 'u' && c != 'e' && c != 'o' {
					b.WriteByte(c)
				}
			}
			continue
		}

		// Long vowel mark extends the previous vowel.
		if r == 'ー' {
			out := b.String()
			if len(out) > 0 {
				last := out[len(out)-1]
				switch last {
				case 'a', 'i', 'u', 'e', 'o':
					b.WriteByte(last)
				}
			}
			continue
		}

		if i+1 < len(runes) {
			if d, ok := digraphs[string(runes[i:i+2])]; ok {
				b.WriteString(d)
				i++
				continue
			}
		}
		if m, ok := monographs[r]; ok {
			b.WriteString(m)
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// nextSyllable returns the romaji for the syllable starting at index i, used
// to pick the consonant a sokuon doubles.
func nextSyllable(runes []rune, i int) string {
	if i >= len(runes) {
		return ""
	}
	if i+1 < len(runes) {
		if d, ok := digraphs[string(runes[i:i+2])]; ok {
			return d
		}
	}
	if m, ok := monographs[runes[i]]; ok {
		return m
	}
	return ""
}
