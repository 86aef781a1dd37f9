package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keyReplacer 需要删除的标点
var keyReplacer = strings.NewReplacer(
	":", "",
	"'", "",
	"`", "",
	"’", "",
	"(", "",
	")", "",
)

// NameKey 由卡牌名称生成URL/文件系统安全的键
// 去除变音符号并音译为ASCII,小写化,空白替换为下划线,删除部分标点
func NameKey(name string) string {
	// transform.Chain 有状态,每次调用单独创建
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s := name
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	// 音译会给汉字等补上尾随空格
	s = strings.TrimSpace(unidecode.Unidecode(s))
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
	s = keyReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	return b.String()
}
